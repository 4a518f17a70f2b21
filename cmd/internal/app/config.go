package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | pretty
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// Browser origins allowed to call the API. Entries may end in ":*" to allow any port.
	// Empty disables CORS handling; browsers then enforce same-origin on their own.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("HANSA_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("HANSA_LOG_LEVEL", "info"),
		LogFormat: EnvString("HANSA_LOG_FORMAT", "json"),
		LogColor:  EnvBool("HANSA_LOG_COLOR", true),

		ReadHeaderTimeout: EnvDuration("HANSA_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("HANSA_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("HANSA_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("HANSA_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("HANSA_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("HANSA_DATABASE_URL", ""),
		DBSchema:    EnvString("HANSA_DB_SCHEMA", "hansa"),
		DBMaxConns:  EnvInt32("HANSA_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("HANSA_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("HANSA_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvCSV("HANSA_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("HANSA_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("HANSA_CORS_MAX_AGE", 600),

		MetricsEnabled: EnvBool("HANSA_METRICS_ENABLED", true),
	}
}
