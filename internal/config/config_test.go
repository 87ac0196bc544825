package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, saxstream.DefaultChunkSize, cfg.Parse.ChunkSize)
	assert.Equal(t, "utf-8", cfg.Parse.Encoding)
	assert.True(t, cfg.Progress.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress.MaxBatchWait)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, "json", cfg.Storage.ReportFormat)
	assert.Empty(t, cfg.DB.Driver)
	assert.Len(t, cfg.ParseOptions(), 2)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  max_body_bytes: 1024
parse:
  chunk_size: 4096
  encoding: windows-1252
logging:
  development: true
progress:
  enabled: true
  buffer_size: 16
  max_batch_events: 4
  max_batch_wait: 1s
  log_events: true
metrics:
  textfile: /tmp/xmlstream.prom
tracing:
  enabled: true
  service_name: xmlstream-test
storage:
  content_type: text/xml
  reports_uri: gs://bucket/reports
  report_format: yaml
db:
  driver: sqlite
  dsn: file:sessions.db
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 4096, cfg.Parse.ChunkSize)
	assert.Equal(t, "windows-1252", cfg.Parse.Encoding)
	assert.True(t, cfg.Logging.Development)
	assert.True(t, cfg.Progress.LogEvents)
	assert.Equal(t, time.Second, cfg.Progress.MaxBatchWait)
	assert.Equal(t, "/tmp/xmlstream.prom", cfg.Metrics.Textfile)
	assert.Equal(t, "xmlstream-test", cfg.Tracing.ServiceName)
	assert.Equal(t, "gs://bucket/reports", cfg.Storage.ReportsURI)
	assert.Equal(t, "yaml", cfg.Storage.ReportFormat)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)

	hub := cfg.HubConfig()
	assert.Equal(t, 16, hub.BufferSize)
	assert.Equal(t, 4, hub.MaxBatchEvents)
	assert.Equal(t, 5*time.Second, hub.SinkTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("XMLSTREAM_PARSE_CHUNK_SIZE", "128")
	t.Setenv("XMLSTREAM_LOGGING_DEVELOPMENT", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Parse.ChunkSize)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:   ServerConfig{Port: 8080, MaxBodyBytes: 1},
		Parse:    ParseConfig{ChunkSize: 1, Encoding: "utf-8"},
		Progress: ProgressConfig{Enabled: true, BufferSize: 1},
		Storage:  StorageConfig{ReportFormat: "json"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"invalid chunk size", func(c *Config) { c.Parse.ChunkSize = 0 }, "parse.chunk_size"},
		{"blank encoding", func(c *Config) { c.Parse.Encoding = " " }, "parse.encoding"},
		{"progress buffer", func(c *Config) { c.Progress.BufferSize = 0 }, "progress.buffer_size"},
		{"report format", func(c *Config) { c.Storage.ReportFormat = "xml" }, "storage.report_format"},
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }, "db.driver"},
		{"missing dsn", func(c *Config) { c.DB.Driver = DriverPostgres }, "db.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
