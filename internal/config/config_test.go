package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEnvVars = []string{
	"TWM_SERVER_PORT", "TWM_DATABASE_DRIVER", "TWM_DATABASE_DSN",
	"TWM_PIPELINE_STEP_SPACING", "TWM_MONITOR_MAX_SUBSCRIPTIONS",
	"TWM_SOURCES_FETCH_TIMEOUT", "TWM_REPORT_DAYS", "TWM_LOGGING_OUTPUT",
	"TWM_CONFIG_FILE", "TWM_REDIS_ADDR", "TWM_LOGGING_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range testEnvVars {
		if val, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, val) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "postgres", cfg.Database.Driver)
				assert.Equal(t, 5*time.Second, cfg.Pipeline.StepSpacing)
				assert.Equal(t, 30*time.Second, cfg.Sources.FetchTimeout)
				assert.Equal(t, 5, cfg.Monitor.MaxSubscriptions)
				assert.Equal(t, 30, cfg.Report.Days)
				assert.Empty(t, cfg.Redis.Addr)
			},
		},
		{
			name: "env overrides",
			env: map[string]string{
				"TWM_SERVER_PORT":               "9090",
				"TWM_DATABASE_DRIVER":           "sqlite",
				"TWM_PIPELINE_STEP_SPACING":     "0s",
				"TWM_MONITOR_MAX_SUBSCRIPTIONS": "3",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "sqlite", cfg.Database.Driver)
				assert.Equal(t, time.Duration(0), cfg.Pipeline.StepSpacing)
				assert.Equal(t, 3, cfg.Monitor.MaxSubscriptions)
			},
		},
		{
			name: "file fills values the env left unset",
			env:  map[string]string{"TWM_SERVER_PORT": "7000"},
			file: "server:\n  port: 6000\nredis:\n  addr: cache:6379\nreport:\n  days: 20\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7000, cfg.Server.Port)
				assert.Equal(t, "cache:6379", cfg.Redis.Addr)
				assert.Equal(t, 20, cfg.Report.Days)
			},
		},
		{
			name:    "unsupported driver",
			env:     map[string]string{"TWM_DATABASE_DRIVER": "mongo"},
			wantErr: true,
		},
		{
			name:    "zero subscriptions",
			env:     map[string]string{"TWM_MONITOR_MAX_SUBSCRIPTIONS": "0"},
			wantErr: true,
		},
		{
			name: "unknown log output falls back to console",
			env:  map[string]string{"TWM_LOGGING_OUTPUT": "syslog"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "console", cfg.Logging.Output)
			},
		},
		{
			name: "text log format",
			env:  map[string]string{"TWM_LOGGING_FORMAT": "text"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name:    "unknown log format",
			env:     map[string]string{"TWM_LOGGING_FORMAT": "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
				os.Setenv("TWM_CONFIG_FILE", path)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestDefaultMatchesTags(t *testing.T) {
	clearEnv(t)

	loaded, err := Load()
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Server, loaded.Server)
	assert.Equal(t, def.Logging, loaded.Logging)
	assert.Equal(t, def.Pipeline, loaded.Pipeline)
	assert.Equal(t, def.Monitor, loaded.Monitor)
	assert.Equal(t, def.Report, loaded.Report)
	assert.Equal(t, def.Sources, loaded.Sources)
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc := cfg.Location()
	_, offset := time.Date(2024, 1, 2, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*60*60, offset)

	cfg.Pipeline.Timezone = "Nowhere/Invalid"
	_, offset = time.Date(2024, 1, 2, 0, 0, 0, 0, cfg.Location()).Zone()
	assert.Equal(t, 8*60*60, offset)
}
