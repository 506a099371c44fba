package config

// EnvPrefix scopes every TableTally environment variable.
const EnvPrefix = "TABLETALLY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TABLETALLY_DB_DSN"
	EnvDBHost = "TABLETALLY_DB_HOST"
	EnvDBUser = "TABLETALLY_DB_USER"
	EnvDBName = "TABLETALLY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
