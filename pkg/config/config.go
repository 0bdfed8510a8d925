package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Source    SourceConfig
	Pipeline  PipelineConfig
	Redis     RedisConfig
	Cron      CronConfig
	Dashboard DashboardConfig
	GCP       GCPConfig
	BigQuery  BigQueryConfig
	PubSub    PubSubConfig
	GCS       GCSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations envconfig cannot express through tags.
func (c *Config) Validate() error {
	switch c.DB.DriverName() {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, c.DB.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.App.LogFormat)) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unsupported %s %q", EnvLogFormat, c.App.LogFormat)
	}
	if len(c.Pipeline.Countries()) == 0 {
		return fmt.Errorf("%s must list at least one country", EnvKnownCountries)
	}
	if strings.TrimSpace(c.Pipeline.CleanTable) == "" {
		return fmt.Errorf("%s is required", EnvCleanTable)
	}
	if c.Pipeline.MinYear > c.Pipeline.MaxYear {
		return fmt.Errorf("%s must not exceed %s", EnvMinYear, EnvMaxYear)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"LTV_APP_ENV" required:"true"`
	Port         string `envconfig:"LTV_APP_PORT" default:"8053"`
	LogLevel     string `envconfig:"LTV_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LTV_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"LTV_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"LTV_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LTV_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LTV_DB_DSN"`
	Driver string `envconfig:"LTV_DB_DRIVER" default:"mysql"`

	LegacyHost     string `envconfig:"LTV_DB_HOST"`
	LegacyPort     int    `envconfig:"LTV_DB_PORT" default:"3306"`
	LegacyUser     string `envconfig:"LTV_DB_USER"`
	LegacyPassword string `envconfig:"LTV_DB_PASSWORD"`
	LegacyName     string `envconfig:"LTV_DB_NAME"`
	LegacySSLMode  string `envconfig:"LTV_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LTV_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"LTV_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"LTV_DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"LTV_DB_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnectTimeout  time.Duration `envconfig:"LTV_DB_CONNECT_TIMEOUT" default:"10s"`
	SlowQuery       time.Duration `envconfig:"LTV_DB_SLOW_QUERY" default:"500ms"`
}

// DriverName returns the normalized driver identifier.
func (db DBConfig) DriverName() string {
	return strings.ToLower(strings.TrimSpace(db.Driver))
}

// SourceConfig describes where the raw export lives and how its columns map onto raw rows.
type SourceConfig struct {
	Table        string `envconfig:"LTV_SOURCE_TABLE" default:"general_ltv_paraguay"`
	FallbackFile string `envconfig:"LTV_SOURCE_FALLBACK_FILE" default:"general_ltv_export.csv"`
	Sheet        string `envconfig:"LTV_SOURCE_SHEET"`
	SkipRows     int    `envconfig:"LTV_SOURCE_SKIP_ROWS" default:"0"`

	KeyColumn    string `envconfig:"LTV_SOURCE_KEY_COLUMN" default:"pais"`
	DateColumn   string `envconfig:"LTV_SOURCE_DATE_COLUMN" default:"fecha"`
	AmountColumn string `envconfig:"LTV_SOURCE_AMOUNT_COLUMN" default:"afiliado"`
	FTDColumn    string `envconfig:"LTV_SOURCE_FTD_COLUMN" default:"usd_total"`
	LTVColumn    string `envconfig:"LTV_SOURCE_LTV_COLUMN" default:"count_ftd"`
	SourceColumn string `envconfig:"LTV_SOURCE_CHANNEL_COLUMN" default:"source"`
}

type PipelineConfig struct {
	KnownCountries []string `envconfig:"LTV_KNOWN_COUNTRIES" default:"Argentina,Colombia,Costa Rica,Ecuador,Mexico,Peru,Brazil,Paraguay"`
	TotalSentinel  string   `envconfig:"LTV_TOTAL_SENTINEL" default:"TOTAL GENERAL"`
	CleanTable     string   `envconfig:"LTV_CLEAN_TABLE" default:"general_ltv_clean"`
	SnapshotPath   string   `envconfig:"LTV_SNAPSHOT_PATH" default:"general_ltv_preview.csv"`
	MinYear        int      `envconfig:"LTV_MIN_YEAR" default:"1900"`
	MaxYear        int      `envconfig:"LTV_MAX_YEAR" default:"2262"`
	InsertBatch    int      `envconfig:"LTV_INSERT_BATCH_SIZE" default:"500"`

	PersistMaxAttempts    int           `envconfig:"LTV_PERSIST_MAX_ATTEMPTS" default:"3"`
	PersistInitialBackoff time.Duration `envconfig:"LTV_PERSIST_INITIAL_BACKOFF" default:"500ms"`
	PersistMaximumBackoff time.Duration `envconfig:"LTV_PERSIST_MAX_BACKOFF" default:"5s"`
}

// Countries returns the trimmed, non-empty known-country list.
func (p PipelineConfig) Countries() []string {
	out := make([]string, 0, len(p.KnownCountries))
	for _, c := range p.KnownCountries {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type RedisConfig struct {
	URL          string        `envconfig:"LTV_REDIS_URL"`
	Address      string        `envconfig:"LTV_REDIS_ADDR"`
	Password     string        `envconfig:"LTV_REDIS_PASSWORD"`
	DB           int           `envconfig:"LTV_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LTV_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LTV_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LTV_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LTV_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LTV_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LTV_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LTV_CRON_LOCK_TTL" default:"55m"`

	// MetricsAddr exposes /metrics on the worker when set, e.g. ":9090".
	MetricsAddr string `envconfig:"LTV_CRON_METRICS_ADDR"`
}

type DashboardConfig struct {
	CacheTTL       time.Duration `envconfig:"LTV_DASHBOARD_CACHE_TTL" default:"5m"`
	AllowedOrigins []string      `envconfig:"LTV_DASHBOARD_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8053"`
	ReloadChannel  string        `envconfig:"LTV_DASHBOARD_RELOAD_CHANNEL" default:"ltv:facts:reloaded"`
	DetailPageSize int           `envconfig:"LTV_DASHBOARD_DETAIL_PAGE_SIZE" default:"15"`
	ReloadLimit    int           `envconfig:"LTV_DASHBOARD_RELOAD_LIMIT" default:"6"`
	ReloadWindow   time.Duration `envconfig:"LTV_DASHBOARD_RELOAD_WINDOW" default:"1m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LTV_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LTV_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LTV_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Enabled   bool   `envconfig:"LTV_BIGQUERY_ENABLED" default:"false"`
	Dataset   string `envconfig:"LTV_BIGQUERY_DATASET" default:"ltv"`
	FactTable string `envconfig:"LTV_BIGQUERY_FACT_TABLE" default:"general_ltv_clean"`
	BatchSize int    `envconfig:"LTV_BIGQUERY_BATCH_SIZE" default:"500"`
}

// PubSubConfig names the optional topic that receives pipeline run events.
type PubSubConfig struct {
	RunTopic string `envconfig:"LTV_PUBSUB_RUN_TOPIC"`
}

// Enabled reports whether run events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.RunTopic) != ""
}

// GCSConfig names the optional bucket receiving snapshot archives.
type GCSConfig struct {
	Bucket        string `envconfig:"LTV_GCS_BUCKET"`
	ArchivePrefix string `envconfig:"LTV_GCS_ARCHIVE_PREFIX" default:"snapshots"`
}

func (g GCSConfig) Enabled() bool {
	return strings.TrimSpace(g.Bucket) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	if db.DriverName() == DriverSQLite {
		if db.LegacyName == "" {
			return fmt.Errorf("either %s or %s is required for sqlite", EnvDBDSN, EnvDBName)
		}
		db.DSN = db.LegacyName
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

	if db.DriverName() == DriverMySQL {
		db.DSN = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			db.LegacyUser, db.LegacyPassword, db.LegacyHost, db.LegacyPort, db.LegacyName)
		return nil
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
