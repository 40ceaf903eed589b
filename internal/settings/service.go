package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/db/models"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

// Known setting keys.
const (
	KeyShopStatus        = "shop_status"
	KeyHideStock         = "hide_stock"
	KeyShopStatusChannel = "shop_status_channel"
)

// Service exposes the shop's key/value configuration store with typed
// accessors for the known keys.
type Service interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]models.Setting, error)

	ShopStatus(ctx context.Context) (enums.ShopStatus, error)
	SetShopStatus(ctx context.Context, status enums.ShopStatus) error
	HideStock(ctx context.Context) (bool, error)
	SetHideStock(ctx context.Context, hide bool) error
	ShopStatusChannel(ctx context.Context) (string, error)
	SetShopStatusChannel(ctx context.Context, channelRef string) error
}

type service struct {
	repo SettingsRepository
}

// NewService wires the settings service.
func NewService(repo SettingsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "setting key required")
	}
	row, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("setting %q not found", key))
		}
		return "", err
	}
	return row.Value, nil
}

func (s *service) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "setting key required")
	}
	return s.repo.Upsert(ctx, key, value)
}

func (s *service) List(ctx context.Context) ([]models.Setting, error) {
	return s.repo.List(ctx)
}

// ShopStatus defaults to open when the row is missing so a fresh
// database does not lock out checkout.
func (s *service) ShopStatus(ctx context.Context) (enums.ShopStatus, error) {
	value, err := s.Get(ctx, KeyShopStatus)
	if err != nil {
		if pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return enums.ShopStatusOpen, nil
		}
		return "", err
	}
	status, parseErr := enums.ParseShopStatus(value)
	if parseErr != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, parseErr, "stored shop status is invalid")
	}
	return status, nil
}

func (s *service) SetShopStatus(ctx context.Context, status enums.ShopStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid shop status %q", status))
	}
	return s.Set(ctx, KeyShopStatus, status.String())
}

func (s *service) HideStock(ctx context.Context) (bool, error) {
	value, err := s.Get(ctx, KeyHideStock)
	if err != nil {
		if pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return false, nil
		}
		return false, err
	}
	hide, parseErr := strconv.ParseBool(value)
	if parseErr != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, parseErr, "stored hide_stock is invalid")
	}
	return hide, nil
}

func (s *service) SetHideStock(ctx context.Context, hide bool) error {
	return s.Set(ctx, KeyHideStock, strconv.FormatBool(hide))
}

func (s *service) ShopStatusChannel(ctx context.Context) (string, error) {
	value, err := s.Get(ctx, KeyShopStatusChannel)
	if err != nil {
		if pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *service) SetShopStatusChannel(ctx context.Context, channelRef string) error {
	if channelRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "channel reference required")
	}
	return s.Set(ctx, KeyShopStatusChannel, channelRef)
}
