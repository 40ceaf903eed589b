package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "BLOCKMART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Payment processor modes accepted by BLOCKMART_PAYMENTS_MODE.
const (
	PaymentsModePayPal = "paypal"
	PaymentsModeSquare = "square"
)

const (
	EnvAppEnv       = "BLOCKMART_APP_ENV"
	EnvPort         = "BLOCKMART_APP_PORT"
	EnvDBDSN        = "BLOCKMART_DB_DSN"
	EnvDBHost       = "BLOCKMART_DB_HOST"
	EnvDBUser       = "BLOCKMART_DB_USER"
	EnvDBName       = "BLOCKMART_DB_NAME"
	EnvRedisURL     = "BLOCKMART_REDIS_URL"
	EnvJWTSecret    = "BLOCKMART_JWT_SECRET"
	EnvPaymentsMode = "BLOCKMART_PAYMENTS_MODE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
