package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// SHELFSTACK_* tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "SHELFSTACK_DB_DSN"
	EnvDBHost = "SHELFSTACK_DB_HOST"
	EnvDBUser = "SHELFSTACK_DB_USER"
	EnvDBName = "SHELFSTACK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	DeletePolicyRestrict     = "restrict"
	DeletePolicyRestrictOpen = "restrict_open"
)

const (
	EnvLendingDeletePolicy = "SHELFSTACK_LENDING_DELETE_POLICY"
	EnvLendingMaxOpenLoans = "SHELFSTACK_LENDING_MAX_OPEN_LOANS"
)
