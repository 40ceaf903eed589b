package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/analytics"
	"github.com/blockmart/blockmart-backend/internal/catalog"
	"github.com/blockmart/blockmart-backend/internal/ledger"
	"github.com/blockmart/blockmart-backend/internal/payment"
	"github.com/blockmart/blockmart-backend/internal/platform"
	"github.com/blockmart/blockmart-backend/pkg/db/models"
	dbtypes "github.com/blockmart/blockmart-backend/pkg/db/types"
	"github.com/blockmart/blockmart-backend/pkg/enums"
	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
	"github.com/blockmart/blockmart-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type memLockStore struct {
	mu   sync.Mutex
	held map[string]bool
}

func (m *memLockStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = map[string]bool{}
	}
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *memLockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.held, key)
	}
	return nil
}

func (m *memLockStore) CartLockKey(userID string) string {
	return "bm:lock:cart:" + userID
}

type stubGateway struct {
	messages        []platform.Message
	bodies          []string
	deletedMessages []string
	archived        []string
	granted         []string
}

func (g *stubGateway) CreateChannel(_ context.Context, _, name, _ string) (platform.Channel, error) {
	return platform.Channel{ID: "chan-" + name, Name: name}, nil
}

func (g *stubGateway) ArchiveChannel(_ context.Context, channelID, _ string) error {
	g.archived = append(g.archived, channelID)
	return nil
}

func (g *stubGateway) DeleteChannel(context.Context, string) error { return nil }

func (g *stubGateway) SendMessage(_ context.Context, channelID, body string) (platform.Message, error) {
	message := platform.Message{ID: uuid.NewString(), ChannelID: channelID}
	g.messages = append(g.messages, message)
	g.bodies = append(g.bodies, body)
	return message, nil
}

func (g *stubGateway) DeleteMessage(_ context.Context, _, messageID string) error {
	g.deletedMessages = append(g.deletedMessages, messageID)
	return nil
}

func (g *stubGateway) GrantRole(_ context.Context, _, roleRef string) error {
	g.granted = append(g.granted, roleRef)
	return nil
}

func (g *stubGateway) RenameChannel(context.Context, string, string) error { return nil }

type stubProcessor struct {
	method    enums.PaymentMethod
	created   []payment.CheckoutParams
	cancelled []string
	state     payment.OrderState
}

func (p *stubProcessor) Method() enums.PaymentMethod { return p.method }

func (p *stubProcessor) CreateCheckout(_ context.Context, params payment.CheckoutParams) (*payment.Checkout, error) {
	p.created = append(p.created, params)
	ref := fmt.Sprintf("proc-ref-%d", len(p.created))
	return &payment.Checkout{Ref: ref, URL: "https://pay.test/" + ref}, nil
}

func (p *stubProcessor) GetOrder(_ context.Context, ref string) (*payment.Order, error) {
	return &payment.Order{Ref: ref, State: p.state}, nil
}

func (p *stubProcessor) Capture(_ context.Context, ref string) (*payment.Order, error) {
	return &payment.Order{Ref: ref, State: payment.OrderStateCompleted}, nil
}

func (p *stubProcessor) CancelCheckout(_ context.Context, ref string) error {
	p.cancelled = append(p.cancelled, ref)
	return nil
}

type stubQuoter struct{}

func (stubQuoter) Quote(_ context.Context, coin string, totalUSD decimal.Decimal) (*payment.CryptoQuote, error) {
	return &payment.CryptoQuote{
		Coin:     coin,
		Address:  "wallet-" + coin,
		Amount:   totalUSD.DivRound(decimal.NewFromInt(1000), 8),
		PriceUSD: decimal.NewFromInt(1000),
		TotalUSD: totalUSD,
	}, nil
}

type stubSettings struct {
	status enums.ShopStatus
}

func (s *stubSettings) ShopStatus(context.Context) (enums.ShopStatus, error) {
	if s.status == "" {
		return enums.ShopStatusOpen, nil
	}
	return s.status, nil
}

type stubTiers struct {
	evaluated []string
}

func (s *stubTiers) Evaluate(_ context.Context, userID string) ([]string, error) {
	s.evaluated = append(s.evaluated, userID)
	return nil, nil
}

type cartFixture struct {
	svc       Service
	db        *gorm.DB
	gateway   *stubGateway
	processor *stubProcessor
	settings  *stubSettings
	tiers     *stubTiers
	users     *ledger.Repository
	items     *catalog.Repository
}

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{`
CREATE TABLE IF NOT EXISTS items (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  price NUMERIC NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  image_url TEXT,
  quantity INTEGER NOT NULL DEFAULT 0,
  message_id TEXT,
  channel_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  balance NUMERIC NOT NULL DEFAULT 0,
  lifetime_spent NUMERIC NOT NULL DEFAULT 0,
  delivery_value_handled NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS purchase_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  item_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  channel_id TEXT,
  message_id TEXT,
  lines TEXT NOT NULL DEFAULT '{}',
  invoice_message_id TEXT,
  payment_ref TEXT,
  payment_method TEXT,
  credit_applied NUMERIC NOT NULL DEFAULT 0,
  delivery_location TEXT,
  last_activity_at DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_open_per_user
  ON carts (user_id) WHERE status NOT IN ('completed','closed');`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	for _, table := range []string{"carts", "purchase_events", "users", "items"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	db := setupCartTestDB(t)

	fixture := &cartFixture{
		db:        db,
		gateway:   &stubGateway{},
		processor: &stubProcessor{method: enums.PaymentMethodPayPal, state: payment.OrderStatePending},
		settings:  &stubSettings{},
		tiers:     &stubTiers{},
		users:     ledger.NewRepository(db),
		items:     catalog.NewRepository(db),
	}

	svc, err := NewService(Deps{
		Carts:     NewRepository(db),
		Items:     fixture.items,
		Users:     fixture.users,
		Events:    analytics.NewRepository(db),
		Tiers:     fixture.tiers,
		Settings:  fixture.settings,
		Processor: fixture.processor,
		Quoter:    stubQuoter{},
		Gateway:   fixture.gateway,
		Tx:        gormTxRunner{db: db},
		Locks:     &memLockStore{},
		Logger:    logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error")}),
	}, Options{
		PurchaseMinimum:     decimal.RequireFromString("0.50"),
		CartCategoryRef:     "category-carts",
		ArchiveCategoryRef:  "category-archive",
		DeliveryPingRoleRef: "role-delivery",
		PublicBaseURL:       "https://shop.test",
	})
	require.NoError(t, err)
	fixture.svc = svc
	return fixture
}

func (f *cartFixture) seedItem(t *testing.T, name, price string, qty int) *models.Item {
	t.Helper()
	item := &models.Item{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), Quantity: qty}
	require.NoError(t, f.db.Create(item).Error)
	return item
}

func (f *cartFixture) stockOf(t *testing.T, itemID uuid.UUID) int {
	t.Helper()
	var item models.Item
	require.NoError(t, f.db.Where("id = ?", itemID).First(&item).Error)
	return item.Quantity
}

func (f *cartFixture) balanceOf(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.Where("id = ?", userID).First(&user).Error)
	return user.Balance
}

func TestUpdateLinesRoundTripsThroughColumnUpdate(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.Cart{UserID: "buyer-lines"})
	require.NoError(t, err)

	itemID := uuid.NewString()
	lines := dbtypes.CartLines{
		itemID: {Quantity: 2, UnitPrice: decimal.RequireFromString("4.50"), Name: "Elytra"},
	}
	require.NoError(t, repo.UpdateLines(ctx, created.ID, lines, time.Now().UTC()))

	got, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[itemID].Quantity)
	assert.Equal(t, "Elytra", got.Lines[itemID].Name)
	assert.True(t, got.Lines[itemID].UnitPrice.Equal(decimal.RequireFromString("4.50")))
}

func TestAddItemSnapshotsAndReservesStock(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	cart, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusActive, cart.Status)
	require.NotNil(t, cart.ChannelID)

	line := cart.Lines[item.ID.String()]
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "Elytra", line.Name)
	assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("4.50")))
	assert.True(t, cart.Total().Equal(decimal.RequireFromString("13.50")))
	assert.Equal(t, 7, f.stockOf(t, item.ID))

	// Later price edits do not touch the snapshot.
	require.NoError(t, f.db.Model(&models.Item{}).Where("id = ?", item.ID).
		Update("price", decimal.RequireFromString("9.99")).Error)
	cart, err = f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)
	assert.True(t, cart.Lines[item.ID.String()].UnitPrice.Equal(decimal.RequireFromString("4.50")))
	assert.Equal(t, 4, cart.Lines[item.ID.String()].Quantity)
}

func TestAddItemInsufficientStock(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Beacon", "3.00", 2)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 3)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Equal(t, 2, f.stockOf(t, item.ID))
}

func TestRemoveItemRestoresStock(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Totem", "1.00", 5)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 4)
	require.NoError(t, err)

	cart, err := f.svc.RemoveItem(ctx, "buyer-1", item.ID, 10)
	require.NoError(t, err)
	_, remains := cart.Lines[item.ID.String()]
	assert.False(t, remains)
	assert.Equal(t, 5, f.stockOf(t, item.ID))
}

func TestApplyCreditCapsAtOutstanding(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Shulker Box", "2.00", 10)

	_, err := f.users.FindOrCreate(ctx, "buyer-1")
	require.NoError(t, err)
	_, err = f.users.Credit(ctx, "buyer-1", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, "buyer-1", item.ID, 2)
	require.NoError(t, err)

	// Asking for more than the total only takes the outstanding amount,
	// fully covers the cart, and settles it immediately.
	cart, err := f.svc.ApplyCredit(ctx, "buyer-1", decimal.RequireFromString("50.00"))
	require.NoError(t, err)
	assert.True(t, cart.CreditApplied.Equal(decimal.RequireFromString("4.00")))
	assert.Equal(t, enums.CartStatusPaid, cart.Status)
	assert.True(t, f.balanceOf(t, "buyer-1").Equal(decimal.RequireFromString("96.00")))
}

func TestApplyCreditInsufficientBalance(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Netherite", "10.00", 5)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.ApplyCredit(ctx, "buyer-1", decimal.RequireFromString("5.00"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCheckoutCreatesHostedInvoice(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 2)
	require.NoError(t, err)

	result, err := f.svc.Checkout(ctx, "buyer-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.PaymentURL)
	assert.Equal(t, enums.CartStatusPendingPayment, result.Cart.Status)
	require.NotNil(t, result.Cart.PaymentRef)
	require.NotNil(t, result.Cart.PaymentMethod)
	assert.Equal(t, enums.PaymentMethodPayPal, *result.Cart.PaymentMethod)
	require.NotNil(t, result.Cart.InvoiceMessageID)

	require.Len(t, f.processor.created, 1)
	assert.True(t, f.processor.created[0].Amount.Equal(decimal.RequireFromString("9.00")))
	assert.Contains(t, f.processor.created[0].ReturnURL, "cart_id=")
}

func TestCheckoutBelowMinimum(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Arrow", "0.25", 100)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "buyer-1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	// Two arrows meet the $0.50 floor exactly.
	_, err = f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, "buyer-1")
	require.NoError(t, err)
}

func TestCheckoutRequiresOpenShop(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Beacon", "3.00", 5)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)

	f.settings.status = enums.ShopStatusClosed
	_, err = f.svc.Checkout(ctx, "buyer-1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestAddItemCancelsOutstandingInvoice(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)
	result, err := f.svc.Checkout(ctx, "buyer-1")
	require.NoError(t, err)
	staleRef := *result.Cart.PaymentRef

	cart, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusActive, cart.Status)
	assert.Nil(t, cart.PaymentRef)
	assert.Nil(t, cart.PaymentMethod)
	assert.Nil(t, cart.InvoiceMessageID)
	assert.Equal(t, []string{staleRef}, f.processor.cancelled)
	assert.Len(t, f.gateway.deletedMessages, 1)
}

func TestCompleteOrderIsIdempotent(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 2)
	require.NoError(t, err)
	result, err := f.svc.Checkout(ctx, "buyer-1")
	require.NoError(t, err)
	cartID := result.Cart.ID

	settled, err := f.svc.CompleteOrder(ctx, cartID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusPaid, settled.Status)

	// The losing side of the webhook/poller race sees a conflict and
	// no side effects double up.
	_, err = f.svc.CompleteOrder(ctx, cartID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	var user models.User
	require.NoError(t, f.db.Where("id = ?", "buyer-1").First(&user).Error)
	assert.True(t, user.LifetimeSpent.Equal(decimal.RequireFromString("9.00")))

	var eventCount int64
	require.NoError(t, f.db.Model(&models.PurchaseEvent{}).Count(&eventCount).Error)
	assert.Equal(t, int64(2), eventCount)

	assert.Equal(t, []string{"buyer-1"}, f.tiers.evaluated)
}

func TestCompleteOrderCountsOnlyChargedAmount(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Beacon", "6.00", 5)

	_, err := f.users.FindOrCreate(ctx, "buyer-1")
	require.NoError(t, err)
	_, err = f.users.Credit(ctx, "buyer-1", decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.ApplyCredit(ctx, "buyer-1", decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	cart, err := f.svc.Get(ctx, "buyer-1")
	require.NoError(t, err)
	_, err = f.svc.CompleteOrder(ctx, cart.ID)
	require.NoError(t, err)

	var user models.User
	require.NoError(t, f.db.Where("id = ?", "buyer-1").First(&user).Error)
	assert.True(t, user.LifetimeSpent.Equal(decimal.RequireFromString("4.00")))
}

func TestCryptoFlow(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 2)
	require.NoError(t, err)

	result, err := f.svc.SelectCrypto(ctx, "buyer-1", "BTC")
	require.NoError(t, err)
	require.NotNil(t, result.Quote)
	assert.Equal(t, "BTC", result.Quote.Coin)
	assert.Equal(t, enums.CartStatusPendingPayment, result.Cart.Status)
	require.NotNil(t, result.Cart.PaymentMethod)
	assert.True(t, result.Cart.PaymentMethod.IsCrypto())
	assert.Nil(t, result.Cart.PaymentRef)

	cart, err := f.svc.ConfirmCryptoSent(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusPendingManualCheck, cart.Status)

	settled, err := f.svc.ConfirmCryptoOrder(ctx, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusPaid, settled.Status)

	// Admin confirm on a cart that never hit manual verification fails.
	_, err = f.svc.ConfirmCryptoOrder(ctx, cart.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestCloseRestoresStockAndCredit(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	_, err := f.users.FindOrCreate(ctx, "buyer-1")
	require.NoError(t, err)
	_, err = f.users.Credit(ctx, "buyer-1", decimal.RequireFromString("3.00"))
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, "buyer-1", item.ID, 4)
	require.NoError(t, err)
	_, err = f.svc.ApplyCredit(ctx, "buyer-1", decimal.RequireFromString("3.00"))
	require.NoError(t, err)

	cart, err := f.svc.Close(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusClosed, cart.Status)
	assert.Equal(t, 10, f.stockOf(t, item.ID))
	assert.True(t, f.balanceOf(t, "buyer-1").Equal(decimal.RequireFromString("3.00")))
	assert.Len(t, f.gateway.archived, 1)

	// The closed cart no longer blocks a new one.
	_, err = f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)
}

func TestClosePaidCartNeedsDelivery(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.NoError(t, err)
	cart, err := f.svc.Get(ctx, "buyer-1")
	require.NoError(t, err)
	_, err = f.svc.CompleteOrder(ctx, cart.ID)
	require.NoError(t, err)

	_, err = f.svc.Close(ctx, "buyer-1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	_, err = f.svc.Deliver(ctx, "agent-1", cart.ID, "spawn hub")
	require.NoError(t, err)

	closed, err := f.svc.Close(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, enums.CartStatusCompleted, closed.Status)

	var agent models.User
	require.NoError(t, f.db.Where("id = ?", "agent-1").First(&agent).Error)
	assert.True(t, agent.DeliveryValueHandled.Equal(decimal.RequireFromString("4.50")))
}

func TestLockBlocksConcurrentMutation(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	locks := &memLockStore{}
	svc, err := NewService(Deps{
		Carts:     NewRepository(f.db),
		Items:     f.items,
		Users:     f.users,
		Events:    analytics.NewRepository(f.db),
		Tiers:     f.tiers,
		Settings:  f.settings,
		Processor: f.processor,
		Quoter:    stubQuoter{},
		Gateway:   f.gateway,
		Tx:        gormTxRunner{db: f.db},
		Locks:     locks,
		Logger:    logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error")}),
	}, Options{PurchaseMinimum: decimal.RequireFromString("0.50")})
	require.NoError(t, err)

	// Simulate another in-flight operation holding the user's mutex.
	held, err := locks.SetNX(ctx, locks.CartLockKey("buyer-1"), "1", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = svc.AddItem(ctx, "buyer-1", item.ID, 1)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestWipeAllRestoresEverything(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "Elytra", "4.50", 10)

	_, err := f.svc.AddItem(ctx, "buyer-1", item.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "buyer-2", item.ID, 3)
	require.NoError(t, err)

	wiped, err := f.svc.WipeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, wiped)
	assert.Equal(t, 10, f.stockOf(t, item.ID))

	carts, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, carts)
}
