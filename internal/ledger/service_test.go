package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  balance NUMERIC NOT NULL DEFAULT 0,
  lifetime_spent NUMERIC NOT NULL DEFAULT 0,
  delivery_value_handled NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec("DELETE FROM users").Error)
	return db
}

func newLedgerService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := setupLedgerTestDB(t)
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db})
	require.NoError(t, err)
	return svc, db
}

func TestAccountCreatedOnFirstTouch(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	balance, err := svc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	// Second read hits the existing row.
	balance, err = svc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestCreditAndDebit(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	user, err := svc.Credit(ctx, "user-2", decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("10.00")))

	user, err = svc.Debit(ctx, "user-2", decimal.RequireFromString("4.25"))
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("5.75")))
}

func TestDebitInsufficientBalance(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-3", decimal.RequireFromString("1.00"))
	require.NoError(t, err)

	_, err = svc.Debit(ctx, "user-3", decimal.RequireFromString("1.01"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	// Balance is untouched after the refused debit.
	balance, err := svc.Balance(ctx, "user-3")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("1.00")))
}

func TestCreditValidation(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "", decimal.RequireFromString("1.00"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Credit(ctx, "user-4", decimal.Zero)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.Debit(ctx, "user-4", decimal.RequireFromString("-1.00"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestSetBalance(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	user, err := svc.SetBalance(ctx, "user-5", decimal.RequireFromString("42.00"))
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.RequireFromString("42.00")))

	_, err = svc.SetBalance(ctx, "user-5", decimal.RequireFromString("-0.01"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestTopSpenders(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()

	repo := NewRepository(db)
	for _, seed := range []struct {
		id    string
		spent string
	}{
		{"buyer-a", "5.00"},
		{"buyer-b", "50.00"},
		{"buyer-c", "20.00"},
	} {
		_, err := repo.FindOrCreate(ctx, seed.id)
		require.NoError(t, err)
		_, err = repo.AddLifetimeSpent(ctx, seed.id, decimal.RequireFromString(seed.spent))
		require.NoError(t, err)
	}

	users, err := svc.TopSpenders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "buyer-b", users[0].ID)
	assert.Equal(t, "buyer-c", users[1].ID)
}
