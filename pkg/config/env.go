package config

const EnvPrefix = "SKSHOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                = "SKSHOP_APP_ENV"
	EnvPort                  = "SKSHOP_APP_PORT"
	EnvDBDSN                 = "SKSHOP_DB_DSN"
	EnvDBHost                = "SKSHOP_DB_HOST"
	EnvDBUser                = "SKSHOP_DB_USER"
	EnvDBName                = "SKSHOP_DB_NAME"
	EnvDBPassword            = "SKSHOP_DB_PASSWORD"
	EnvRedisURL              = "SKSHOP_REDIS_URL"
	EnvJWTSecret             = "SKSHOP_JWT_SECRET"
	EnvReservationHoldWindow = "SKSHOP_RESERVATION_HOLD_WINDOW"
	EnvDeliveryFee           = "SKSHOP_DELIVERY_FEE"
	EnvSchoolPickupFee       = "SKSHOP_SCHOOL_PICKUP_FEE"
	EnvGatewayTimeout        = "SKSHOP_GATEWAY_TIMEOUT"
	EnvAutoCancelLapsed      = "SKSHOP_AUTO_CANCEL_LAPSED_ORDERS"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
