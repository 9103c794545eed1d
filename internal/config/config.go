package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "TWM"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Monitor   MonitorConfig   `yaml:"monitor" envconfig:"MONITOR"`
	Notify    NotifyConfig    `yaml:"notify" envconfig:"NOTIFY"`
	Report    ReportConfig    `yaml:"report" envconfig:"REPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       float64       `yaml:"rate_limit" envconfig:"RATE_LIMIT" default:"20"`
	RateBurst       int           `yaml:"rate_burst" envconfig:"RATE_BURST" default:"40"`
	// AllowedOrigins lists cross-origin pages allowed on the live event socket
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output     string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	// Format is json or text
	Format     string `yaml:"format" envconfig:"FORMAT" default:"json"`
	FilePath   string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/twmarket.log"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" default:"50"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS" default:"7"`
}

// DatabaseConfig selects the statistics store
type DatabaseConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER" default:"postgres"`
	DSN    string `yaml:"dsn" envconfig:"DSN" default:"host=localhost user=postgres dbname=twmarket sslmode=disable"`
}

// RedisConfig points at the monitor store. An empty address selects the
// in-process index.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB" default:"0"`
}

// SourcesConfig tunes upstream fetching
type SourcesConfig struct {
	FetchTimeout   time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"30s"`
	RatePerSecond  float64       `yaml:"rate_per_second" envconfig:"RATE_PER_SECOND" default:"1"`
	Burst          int           `yaml:"burst" envconfig:"BURST" default:"2"`
	UserAgent      string        `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (compatible; twmarket)"`
	BreakerFailure uint32        `yaml:"breaker_failures" envconfig:"BREAKER_FAILURES" default:"5"`
	TWSEBaseURL    string        `yaml:"twse_base_url" envconfig:"TWSE_BASE_URL" default:"https://www.twse.com.tw"`
	TPExBaseURL    string        `yaml:"tpex_base_url" envconfig:"TPEX_BASE_URL" default:"https://www.tpex.org.tw"`
	TAIFEXBaseURL  string        `yaml:"taifex_base_url" envconfig:"TAIFEX_BASE_URL" default:"https://www.taifex.com.tw"`
	ISINBaseURL    string        `yaml:"isin_base_url" envconfig:"ISIN_BASE_URL" default:"https://isin.twse.com.tw"`
	InvestingURL   string        `yaml:"investing_url" envconfig:"INVESTING_URL" default:"https://api.investing.com"`
	// InvestingFetch is browser, http or off
	InvestingFetch string        `yaml:"investing_fetch" envconfig:"INVESTING_FETCH" default:"browser"`
}

// PipelineConfig controls the ingestion scheduler
type PipelineConfig struct {
	StepSpacing time.Duration `yaml:"step_spacing" envconfig:"STEP_SPACING" default:"5s"`
	Timezone    string        `yaml:"timezone" envconfig:"TIMEZONE" default:"Asia/Taipei"`
}

// MonitorConfig controls the alert engine and its quote feed
type MonitorConfig struct {
	MaxSubscriptions int           `yaml:"max_subscriptions" envconfig:"MAX_SUBSCRIPTIONS" default:"5"`
	FeedURL          string        `yaml:"feed_url" envconfig:"FEED_URL" default:"wss://api.fugle.tw/realtime/v0.3/intraday/quote"`
	FeedToken        string        `yaml:"feed_token" envconfig:"FEED_TOKEN"`
	ReconnectMax     time.Duration `yaml:"reconnect_max" envconfig:"RECONNECT_MAX" default:"1m"`
}

// NotifyConfig configures alert delivery
type NotifyConfig struct {
	URL   string `yaml:"url" envconfig:"URL" default:"https://notify-api.line.me/api/notify"`
	Token string `yaml:"token" envconfig:"TOKEN"`
}

// ReportConfig controls the daily workbook
type ReportConfig struct {
	Days      int    `yaml:"days" envconfig:"DAYS" default:"30"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"data/reports"`
	Top       int    `yaml:"top" envconfig:"TOP" default:"50"`
}

// TelemetryConfig toggles OpenTelemetry
type TelemetryConfig struct {
	TracingEnabled bool    `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
}

// Load loads configuration from .env, environment variables and config file
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs fills settings that only the file provides. Environment
// values are applied with defaults, so the file overrides a field only when
// the variable was not set explicitly.
func mergeConfigs(fileConfig, envConfig Config) Config {
	setString := func(dst *string, envKey, fileVal string) {
		if _, ok := os.LookupEnv(EnvPrefix + "_" + envKey); !ok && fileVal != "" {
			*dst = fileVal
		}
	}
	setInt := func(dst *int, envKey string, fileVal int) {
		if _, ok := os.LookupEnv(EnvPrefix + "_" + envKey); !ok && fileVal != 0 {
			*dst = fileVal
		}
	}
	setDuration := func(dst *time.Duration, envKey string, fileVal time.Duration) {
		if _, ok := os.LookupEnv(EnvPrefix + "_" + envKey); !ok && fileVal != 0 {
			*dst = fileVal
		}
	}

	setInt(&envConfig.Server.Port, "SERVER_PORT", fileConfig.Server.Port)
	setDuration(&envConfig.Server.ReadTimeout, "SERVER_READ_TIMEOUT", fileConfig.Server.ReadTimeout)
	setDuration(&envConfig.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT", fileConfig.Server.WriteTimeout)

	setString(&envConfig.Logging.Level, "LOGGING_LEVEL", fileConfig.Logging.Level)
	setString(&envConfig.Logging.Output, "LOGGING_OUTPUT", fileConfig.Logging.Output)
	setString(&envConfig.Logging.Format, "LOGGING_FORMAT", fileConfig.Logging.Format)
	setString(&envConfig.Logging.FilePath, "LOGGING_FILE_PATH", fileConfig.Logging.FilePath)

	setString(&envConfig.Database.Driver, "DATABASE_DRIVER", fileConfig.Database.Driver)
	setString(&envConfig.Database.DSN, "DATABASE_DSN", fileConfig.Database.DSN)

	setString(&envConfig.Redis.Addr, "REDIS_ADDR", fileConfig.Redis.Addr)
	setString(&envConfig.Redis.Password, "REDIS_PASSWORD", fileConfig.Redis.Password)
	setInt(&envConfig.Redis.DB, "REDIS_DB", fileConfig.Redis.DB)

	setDuration(&envConfig.Sources.FetchTimeout, "SOURCES_FETCH_TIMEOUT", fileConfig.Sources.FetchTimeout)
	setDuration(&envConfig.Pipeline.StepSpacing, "PIPELINE_STEP_SPACING", fileConfig.Pipeline.StepSpacing)

	setInt(&envConfig.Monitor.MaxSubscriptions, "MONITOR_MAX_SUBSCRIPTIONS", fileConfig.Monitor.MaxSubscriptions)
	setString(&envConfig.Monitor.FeedURL, "MONITOR_FEED_URL", fileConfig.Monitor.FeedURL)
	setString(&envConfig.Monitor.FeedToken, "MONITOR_FEED_TOKEN", fileConfig.Monitor.FeedToken)

	setString(&envConfig.Notify.Token, "NOTIFY_TOKEN", fileConfig.Notify.Token)

	setInt(&envConfig.Report.Days, "REPORT_DAYS", fileConfig.Report.Days)
	setString(&envConfig.Report.OutputDir, "REPORT_OUTPUT_DIR", fileConfig.Report.OutputDir)

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Sources.FetchTimeout <= 0 {
		return fmt.Errorf("sources fetch timeout must be positive")
	}

	if c.Pipeline.StepSpacing < 0 {
		return fmt.Errorf("pipeline step spacing cannot be negative")
	}

	if c.Monitor.MaxSubscriptions <= 0 {
		return fmt.Errorf("monitor max subscriptions must be positive")
	}

	switch c.Sources.InvestingFetch {
	case "browser", "http", "off":
	default:
		return fmt.Errorf("unsupported investing fetch mode: %s", c.Sources.InvestingFetch)
	}

	if c.Report.Days <= 0 {
		return fmt.Errorf("report days must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	switch c.Logging.Format {
	case "json", "text":
	case "":
		c.Logging.Format = "json"
	default:
		return fmt.Errorf("unsupported log format: %s", c.Logging.Format)
	}

	return nil
}

// Location resolves the pipeline timezone, falling back to a fixed UTC+8
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       20,
			RateBurst:       40,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     "console",
			Format:     "json",
			FilePath:   "logs/twmarket.log",
			MaxSizeMB:  50,
			MaxBackups: 7,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			DSN:    "host=localhost user=postgres dbname=twmarket sslmode=disable",
		},
		Sources: SourcesConfig{
			FetchTimeout:   30 * time.Second,
			RatePerSecond:  1,
			Burst:          2,
			UserAgent:      "Mozilla/5.0 (compatible; twmarket)",
			BreakerFailure: 5,
			TWSEBaseURL:    "https://www.twse.com.tw",
			TPExBaseURL:    "https://www.tpex.org.tw",
			TAIFEXBaseURL:  "https://www.taifex.com.tw",
			ISINBaseURL:    "https://isin.twse.com.tw",
			InvestingURL:   "https://api.investing.com",
			InvestingFetch: "browser",
		},
		Pipeline: PipelineConfig{
			StepSpacing: 5 * time.Second,
			Timezone:    "Asia/Taipei",
		},
		Monitor: MonitorConfig{
			MaxSubscriptions: 5,
			FeedURL:          "wss://api.fugle.tw/realtime/v0.3/intraday/quote",
			ReconnectMax:     time.Minute,
		},
		Notify: NotifyConfig{
			URL: "https://notify-api.line.me/api/notify",
		},
		Report: ReportConfig{
			Days:      30,
			OutputDir: "data/reports",
			Top:       50,
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: true,
			SampleRatio:    1,
			Environment:    "development",
		},
	}
}
