// Package config loads and validates xmlstream configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/xmlstream/internal/progress"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Parse    ParseConfig    `mapstructure:"parse"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Progress ProgressConfig `mapstructure:"progress"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
}

// ServerConfig controls the HTTP parse service.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// ParseConfig holds the parser defaults applied to every session.
type ParseConfig struct {
	ChunkSize int    `mapstructure:"chunk_size"`
	Encoding  string `mapstructure:"encoding"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProgressConfig tunes the progress hub and its sinks.
type ProgressConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
	LogEvents      bool          `mapstructure:"log_events"`
}

// MetricsConfig controls Prometheus export. Textfile, when set, receives the
// registry in text exposition format after a CLI run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// TracingConfig toggles OpenTelemetry spans.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// StorageConfig sets output content types and where session reports go.
type StorageConfig struct {
	ContentType  string `mapstructure:"content_type"`
	ReportsURI   string `mapstructure:"reports_uri"`
	ReportFormat string `mapstructure:"report_format"`
}

// DBConfig selects the optional session history database.
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Supported session database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("XMLSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 64<<20)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("parse.chunk_size", saxstream.DefaultChunkSize)
	v.SetDefault("parse.encoding", saxstream.DefaultEncoding)
	v.SetDefault("logging.development", false)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait", "250ms")
	v.SetDefault("progress.sink_timeout", "5s")
	v.SetDefault("progress.log_events", false)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "xmlstream")
	v.SetDefault("storage.content_type", "application/xml; charset=utf-8")
	v.SetDefault("storage.reports_uri", "")
	v.SetDefault("storage.report_format", "json")
	v.SetDefault("db.driver", "")
	v.SetDefault("db.dsn", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}
	if c.Parse.ChunkSize <= 0 {
		return fmt.Errorf("parse.chunk_size must be > 0")
	}
	if strings.TrimSpace(c.Parse.Encoding) == "" {
		return fmt.Errorf("parse.encoding must be set")
	}
	if c.Progress.Enabled && c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0 when progress is enabled")
	}
	switch c.Storage.ReportFormat {
	case "json", "yaml":
	default:
		return fmt.Errorf("storage.report_format must be json or yaml, got %q", c.Storage.ReportFormat)
	}
	switch c.DB.Driver {
	case "":
	case DriverPostgres, DriverSQLite:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.driver is %s", c.DB.Driver)
		}
	default:
		return fmt.Errorf("db.driver must be postgres or sqlite, got %q", c.DB.Driver)
	}
	return nil
}

// ParseOptions converts the parse section into saxstream options.
func (c Config) ParseOptions() []saxstream.Option {
	return []saxstream.Option{
		saxstream.WithChunkSize(c.Parse.ChunkSize),
		saxstream.WithEncoding(c.Parse.Encoding),
	}
}

// HubConfig converts the progress section into a progress.Config.
func (c Config) HubConfig() progress.Config {
	return progress.Config{
		BufferSize:     c.Progress.BufferSize,
		MaxBatchEvents: c.Progress.MaxBatchEvents,
		MaxBatchWait:   c.Progress.MaxBatchWait,
		SinkTimeout:    c.Progress.SinkTimeout,
	}
}
