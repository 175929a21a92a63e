package config

const (
	EnvPrefix = "entrena"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv          = "ENTRENA_APP_ENV"
	EnvPort            = "ENTRENA_APP_PORT"
	EnvDBDSN           = "ENTRENA_DB_DSN"
	EnvDBHost          = "ENTRENA_DB_HOST"
	EnvDBUser          = "ENTRENA_DB_USER"
	EnvDBName          = "ENTRENA_DB_NAME"
	EnvJWTSecret       = "ENTRENA_JWT_SECRET"
	EnvJWTIssuer       = "ENTRENA_JWT_ISSUER"
	EnvMPPlatformToken = "ENTRENA_MP_PLATFORM_ACCESS_TOKEN"
	EnvMPNotifyURL     = "ENTRENA_MP_NOTIFICATION_URL"
	EnvMPSuccessURL    = "ENTRENA_MP_BACK_URL_SUCCESS"
	EnvMPFailureURL    = "ENTRENA_MP_BACK_URL_FAILURE"
	EnvMPPendingURL    = "ENTRENA_MP_BACK_URL_PENDING"
	EnvVaultTokenKey   = "ENTRENA_VAULT_TOKEN_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
