package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Ledger.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Ledger.CacheTTL)
	assert.Equal(t, 100, cfg.Analyzer.PageSize)
	assert.Equal(t, 3, cfg.Analyzer.LookaheadLimit)
	assert.Equal(t, 10, cfg.Analyzer.BatchSize)
	assert.Equal(t, 30, cfg.Analyzer.DefaultWindowDays)
	assert.Equal(t, "stdout", cfg.Log.Output)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_BASE_URL", "http://localhost:9000/v1")
	t.Setenv("LEDGER_MAX_RPS", "2.5")
	t.Setenv("ANALYZER_BATCH_SIZE", "4")
	t.Setenv("ANALYZER_HIGH_PRIORITY_WORKERS", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/v1", cfg.Ledger.BaseURL)
	assert.Equal(t, 2.5, cfg.Ledger.MaxRPS)
	assert.Equal(t, 4, cfg.Analyzer.BatchSize)
	assert.Equal(t, 20, cfg.Analyzer.HighPriorityWorkers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"negative retries", "LEDGER_MAX_RETRIES", "-1"},
		{"zero rps", "LEDGER_MAX_RPS", "0"},
		{"zero page size", "ANALYZER_PAGE_SIZE", "0"},
		{"zero lookahead", "ANALYZER_LOOKAHEAD_LIMIT", "0"},
		{"zero batch size", "ANALYZER_BATCH_SIZE", "0"},
		{"not a number", "ANALYZER_BATCH_SIZE", "ten"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=require", c.DSN())
}
