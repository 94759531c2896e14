package sossml2gpkg

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"cencoos", "nanoos"}, cfg.ProviderLabels())
	assert.Equal(t, 200*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Stations)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("./sample_data/providers.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/stations", cfg.OutputDir)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, []string{"nanoos"}, cfg.ProviderLabels())
	assert.Equal(t, []string{aplChabaURN, chaKwaURN}, cfg.Stations)

	client := cfg.Client("nanoos")
	assert.Equal(t, "http://data.nanoos.org/52nsos/sos/kvp", client.Endpoint)
	assert.Equal(t, 90*time.Second, client.Timeout)
	assert.Equal(t, 4, client.Concurrency)
	assert.Equal(t, 2, client.Retries)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := testTempdir(t)

	path := dir + "/bad.yaml"
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  nanoos: \"\"\n"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)

	path = dir + "/negative.yaml"
	require.NoError(t, os.WriteFile(path, []byte("retries: -1\n"), 0o644))
	_, err = LoadConfig(path)
	require.Error(t, err)

	_, err = LoadConfig(dir + "/missing.yaml")
	require.ErrorIs(t, err, os.ErrNotExist)
}
