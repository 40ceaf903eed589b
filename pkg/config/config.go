package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Shop         ShopConfig
	Platform     PlatformConfig
	Payments     PaymentsConfig
	PayPal       PayPalConfig
	Square       SquareConfig
	Crypto       CryptoConfig
	Giveaway     GiveawayConfig
	Reconcile    ReconcileConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BLOCKMART_APP_ENV" required:"true"`
	Port         string `envconfig:"BLOCKMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BLOCKMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BLOCKMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BLOCKMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BLOCKMART_DB_DSN"`
	Driver string `envconfig:"BLOCKMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BLOCKMART_DB_HOST"`
	LegacyPort     int    `envconfig:"BLOCKMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BLOCKMART_DB_USER"`
	LegacyPassword string `envconfig:"BLOCKMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"BLOCKMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"BLOCKMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BLOCKMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BLOCKMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BLOCKMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BLOCKMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BLOCKMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BLOCKMART_REDIS_ADDR"`
	Password     string        `envconfig:"BLOCKMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"BLOCKMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BLOCKMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BLOCKMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BLOCKMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BLOCKMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BLOCKMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BLOCKMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BLOCKMART_JWT_ISSUER" default:"blockmart"`
	ExpirationMinutes int    `envconfig:"BLOCKMART_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// ShopConfig tunes checkout gates and the maintenance sweeps.
type ShopConfig struct {
	PurchaseMinimumUSD  string        `envconfig:"BLOCKMART_SHOP_PURCHASE_MINIMUM" default:"0.50"`
	InactivityThreshold time.Duration `envconfig:"BLOCKMART_SHOP_INACTIVITY_THRESHOLD" default:"48h"`
	ReminderInterval    time.Duration `envconfig:"BLOCKMART_SHOP_REMINDER_INTERVAL" default:"48h"`
	RetentionWindow     time.Duration `envconfig:"BLOCKMART_SHOP_RETENTION_WINDOW" default:"168h"`
	PurgeInterval       time.Duration `envconfig:"BLOCKMART_SHOP_PURGE_INTERVAL" default:"168h"`
}

// PurchaseMinimum returns the smallest checkout total accepted by the
// hosted processors, parsed as an exact decimal.
func (s ShopConfig) PurchaseMinimum() decimal.Decimal {
	min, err := decimal.NewFromString(strings.TrimSpace(s.PurchaseMinimumUSD))
	if err != nil {
		return decimal.RequireFromString("0.50")
	}
	return min
}

// PlatformConfig carries the chat-platform identifiers the gateway
// needs when provisioning channels and roles.
type PlatformConfig struct {
	CartCategory          string `envconfig:"BLOCKMART_PLATFORM_CART_CATEGORY"`
	ArchiveCategory       string `envconfig:"BLOCKMART_PLATFORM_ARCHIVE_CATEGORY"`
	TicketCategory        string `envconfig:"BLOCKMART_PLATFORM_TICKET_CATEGORY"`
	TicketArchiveCategory string `envconfig:"BLOCKMART_PLATFORM_TICKET_ARCHIVE_CATEGORY"`
	GiveawayChannel       string `envconfig:"BLOCKMART_PLATFORM_GIVEAWAY_CHANNEL"`
	GiveawayRole          string `envconfig:"BLOCKMART_PLATFORM_GIVEAWAY_ROLE"`
	DeliveryPingRole      string `envconfig:"BLOCKMART_PLATFORM_DELIVERY_PING_ROLE"`
	ShopStatusChannel     string `envconfig:"BLOCKMART_PLATFORM_SHOP_STATUS_CHANNEL"`
}

type PaymentsConfig struct {
	Mode string `envconfig:"BLOCKMART_PAYMENTS_MODE" default:"paypal"`
}

func (p PaymentsConfig) validate() error {
	switch p.NormalizedMode() {
	case PaymentsModePayPal, PaymentsModeSquare:
		return nil
	default:
		return fmt.Errorf("payments mode must be %q or %q, got %q", PaymentsModePayPal, PaymentsModeSquare, p.Mode)
	}
}

// NormalizedMode returns the lowercased processor mode.
func (p PaymentsConfig) NormalizedMode() string {
	return strings.TrimSpace(strings.ToLower(p.Mode))
}

type PayPalConfig struct {
	Env           string `envconfig:"BLOCKMART_PAYPAL_ENV" default:"sandbox"`
	BaseURL       string `envconfig:"BLOCKMART_PAYPAL_BASE_URL"`
	ClientID      string `envconfig:"BLOCKMART_PAYPAL_CLIENT_ID"`
	Secret        string `envconfig:"BLOCKMART_PAYPAL_SECRET"`
	BrandName     string `envconfig:"BLOCKMART_PAYPAL_BRAND_NAME" default:"BlockMart"`
	ReturnBaseURL string `envconfig:"BLOCKMART_PAYPAL_RETURN_BASE_URL"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"BLOCKMART_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"BLOCKMART_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"BLOCKMART_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CryptoConfig struct {
	BTCAddress       string `envconfig:"BLOCKMART_CRYPTO_BTC_ADDRESS"`
	ETHAddress       string `envconfig:"BLOCKMART_CRYPTO_ETH_ADDRESS"`
	LTCAddress       string `envconfig:"BLOCKMART_CRYPTO_LTC_ADDRESS"`
	CoinGeckoBaseURL string `envconfig:"BLOCKMART_CRYPTO_COINGECKO_BASE_URL"`
}

// WalletAddress returns the configured receive address for a coin
// symbol, or empty when the coin is not offered.
func (c CryptoConfig) WalletAddress(coin string) string {
	switch strings.ToUpper(strings.TrimSpace(coin)) {
	case "BTC":
		return c.BTCAddress
	case "ETH":
		return c.ETHAddress
	case "LTC":
		return c.LTCAddress
	default:
		return ""
	}
}

type GiveawayConfig struct {
	PrizeUSD         string        `envconfig:"BLOCKMART_GIVEAWAY_PRIZE" default:"5.00"`
	Duration         time.Duration `envconfig:"BLOCKMART_GIVEAWAY_DURATION" default:"24h"`
	RotationInterval time.Duration `envconfig:"BLOCKMART_GIVEAWAY_ROTATION_INTERVAL" default:"1m"`
}

// Prize returns the store-credit prize amount for a giveaway winner.
func (g GiveawayConfig) Prize() decimal.Decimal {
	prize, err := decimal.NewFromString(strings.TrimSpace(g.PrizeUSD))
	if err != nil {
		return decimal.RequireFromString("5.00")
	}
	return prize
}

type ReconcileConfig struct {
	Interval time.Duration `envconfig:"BLOCKMART_RECONCILE_INTERVAL" default:"15s"`
}

type WebhookConfig struct {
	Secret        string `envconfig:"BLOCKMART_WEBHOOK_SECRET"`
	PublicBaseURL string `envconfig:"BLOCKMART_PUBLIC_BASE_URL" default:"http://localhost:8080"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BLOCKMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BLOCKMART_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
