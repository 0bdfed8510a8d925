package config

// EnvPrefix is empty because every tag already carries the full LTV_ name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv      = "LTV_APP_ENV"
	EnvPort        = "LTV_APP_PORT"
	EnvLogLevel    = "LTV_LOG_LEVEL"
	EnvLogFormat   = "LTV_LOG_FORMAT"
	EnvServiceKind = "LTV_SERVICE_KIND"

	EnvDBDSN      = "LTV_DB_DSN"
	EnvDBDriver   = "LTV_DB_DRIVER"
	EnvDBHost     = "LTV_DB_HOST"
	EnvDBPort     = "LTV_DB_PORT"
	EnvDBUser     = "LTV_DB_USER"
	EnvDBPassword = "LTV_DB_PASSWORD"
	EnvDBName     = "LTV_DB_NAME"
	EnvDBSlow     = "LTV_DB_SLOW_QUERY"

	EnvSourceTable    = "LTV_SOURCE_TABLE"
	EnvSourceFallback = "LTV_SOURCE_FALLBACK_FILE"
	EnvSourceSkipRows = "LTV_SOURCE_SKIP_ROWS"

	EnvKnownCountries = "LTV_KNOWN_COUNTRIES"
	EnvTotalSentinel  = "LTV_TOTAL_SENTINEL"
	EnvCleanTable     = "LTV_CLEAN_TABLE"
	EnvSnapshotPath   = "LTV_SNAPSHOT_PATH"
	EnvMinYear        = "LTV_MIN_YEAR"
	EnvMaxYear        = "LTV_MAX_YEAR"

	EnvRedisURL  = "LTV_REDIS_URL"
	EnvRedisAddr = "LTV_REDIS_ADDR"

	EnvCronInterval    = "LTV_CRON_INTERVAL"
	EnvCronMetricsAddr = "LTV_CRON_METRICS_ADDR"

	EnvDashboardCacheTTL = "LTV_DASHBOARD_CACHE_TTL"

	EnvGCPProjectID    = "LTV_GCP_PROJECT_ID"
	EnvBigQueryEnabled = "LTV_BIGQUERY_ENABLED"
	EnvBigQueryDataset = "LTV_BIGQUERY_DATASET"
	EnvBigQueryFactTbl = "LTV_BIGQUERY_FACT_TABLE"
	EnvPubSubRunTopic  = "LTV_PUBSUB_RUN_TOPIC"
	EnvGCSBucket       = "LTV_GCS_BUCKET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
