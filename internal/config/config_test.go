package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "cluefall:actions", cfg.HistoryStream)
	assert.Zero(t, cfg.ShuffleSeed)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CLUEFALL_ADDR", ":9999")
	t.Setenv("CLUEFALL_DATABASE_URL", "postgres://localhost/cluefall")
	t.Setenv("CLUEFALL_SHUFFLE_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "postgres://localhost/cluefall", cfg.DatabaseURL)
	assert.EqualValues(t, 42, cfg.ShuffleSeed)
}
