package config

// EnvPrefix is empty because every field carries its full variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DMAPIKeyPrefix = "dmapi_"
)

const (
	EnvAppEnv   = "CASTINGLY_APP_ENV"
	EnvPort     = "CASTINGLY_APP_PORT"
	EnvDBDSN    = "CASTINGLY_DB_DSN"
	EnvDBHost   = "CASTINGLY_DB_HOST"
	EnvDBUser   = "CASTINGLY_DB_USER"
	EnvDBName   = "CASTINGLY_DB_NAME"
	EnvRedisURL = "CASTINGLY_REDIS_URL"

	EnvJWTSecret = "CASTINGLY_JWT_SECRET"
	EnvCoreURL   = "CASTINGLY_CORE_URL"

	EnvDMAPIURL             = "CASTINGLY_DMAPI_URL"
	EnvDMAPIAPIKey          = "CASTINGLY_DMAPI_API_KEY"
	EnvDMAPIServiceEmail    = "CASTINGLY_DMAPI_SERVICE_EMAIL"
	EnvDMAPIServicePassword = "CASTINGLY_DMAPI_SERVICE_PASSWORD"

	EnvMediaDisableImageLimits = "CASTINGLY_MEDIA_DISABLE_IMAGE_LIMITS"
	EnvMediaHeadshotMaxCount   = "CASTINGLY_MEDIA_HEADSHOT_MAX_COUNT"
	EnvMediaHeadshotMaxMB      = "CASTINGLY_MEDIA_HEADSHOT_MAX_MB"

	EnvAdminSecret = "CASTINGLY_ADMIN_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
