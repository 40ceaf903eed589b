package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

func setupSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM settings").Error)
	return db
}

func newSettingsService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(setupSettingsTestDB(t)))
	require.NoError(t, err)
	return svc
}

func TestSetAndGetRoundTrip(t *testing.T) {
	svc := newSettingsService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "welcome_message", "hello"))

	value, err := svc.Get(ctx, "welcome_message")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)

	// Upsert replaces the previous value.
	require.NoError(t, svc.Set(ctx, "welcome_message", "hi again"))
	value, err = svc.Get(ctx, "welcome_message")
	require.NoError(t, err)
	assert.Equal(t, "hi again", value)
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	svc := newSettingsService(t)

	_, err := svc.Get(context.Background(), "absent")
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, pkgerrors.CodeNotFound, domainErr.Code())
}

func TestShopStatusDefaultsToOpen(t *testing.T) {
	svc := newSettingsService(t)
	ctx := context.Background()

	status, err := svc.ShopStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, enums.ShopStatusOpen, status)

	require.NoError(t, svc.SetShopStatus(ctx, enums.ShopStatusClosed))
	status, err = svc.ShopStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, enums.ShopStatusClosed, status)
}

func TestSetShopStatusRejectsUnknownValue(t *testing.T) {
	svc := newSettingsService(t)

	err := svc.SetShopStatus(context.Background(), enums.ShopStatus("busy"))
	require.Error(t, err)
	domainErr := pkgerrors.As(err)
	require.NotNil(t, domainErr)
	assert.Equal(t, pkgerrors.CodeValidation, domainErr.Code())
}

func TestHideStockDefaultsToFalse(t *testing.T) {
	svc := newSettingsService(t)
	ctx := context.Background()

	hide, err := svc.HideStock(ctx)
	require.NoError(t, err)
	assert.False(t, hide)

	require.NoError(t, svc.SetHideStock(ctx, true))
	hide, err = svc.HideStock(ctx)
	require.NoError(t, err)
	assert.True(t, hide)
}

func TestListReturnsEveryRow(t *testing.T) {
	svc := newSettingsService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "a", "1"))
	require.NoError(t, svc.Set(ctx, "b", "2"))

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
