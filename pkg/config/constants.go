package config

// EnvPrefix is the envconfig prefix shared by every service binary.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SCRIBEWELL_DB_DSN"
	EnvDBHost = "SCRIBEWELL_DB_HOST"
	EnvDBUser = "SCRIBEWELL_DB_USER"
	EnvDBName = "SCRIBEWELL_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
