package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

// txRunner is the slice of the DB client the service needs.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages store-credit balances and spend counters.
type Service interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Account(ctx context.Context, userID string) (*models.User, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error)
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) (*models.User, error)
	TopSpenders(ctx context.Context, limit int) ([]models.User, error)
}

type service struct {
	repo UserRepository
	tx   txRunner
}

// NewService wires the ledger service.
func NewService(repo UserRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.Account(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// Account loads the user's ledger row, creating it on first touch.
func (s *service) Account(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "user account could not be loaded")
	}
	return user, nil
}

// Credit adds store credit to the user's balance.
func (s *service) Credit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOrCreate(ctx, userID); err != nil {
			return err
		}
		affected, err := repo.Credit(ctx, userID, amount)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "credit did not apply")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

// Debit removes store credit. Insufficient funds surface as a state
// conflict rather than driving the balance negative.
func (s *service) Debit(ctx context.Context, userID string, amount decimal.Decimal) (*models.User, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOrCreate(ctx, userID); err != nil {
			return err
		}
		affected, err := repo.Debit(ctx, userID, amount)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient balance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

// SetBalance overwrites the user's balance. Admin surface only.
func (s *service) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) (*models.User, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if balance.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "balance cannot be negative")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOrCreate(ctx, userID); err != nil {
			return err
		}
		_, err := repo.SetBalance(ctx, userID, balance)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *service) TopSpenders(ctx context.Context, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.TopSpenders(ctx, limit)
}
