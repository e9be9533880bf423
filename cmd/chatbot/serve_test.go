package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigPath(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	prev := configPath
	configPath = path
	t.Cleanup(func() { configPath = prev })
}

func TestProvideConfigRejectsIncompleteConfig(t *testing.T) {
	withConfigPath(t, `
[server]
addr = ":8080"
`)

	_, err := provideConfig()
	assert.Error(t, err, "missing gateway credentials must fail startup, not boot")
}

func TestProvideConfigAcceptsCompleteConfig(t *testing.T) {
	withConfigPath(t, `
[wapi]
api_url = "https://gw.example"
token = "tok"
connection_key = "conn"
department_number = "5511000000000"

[analysis]
base_url = "https://api.example"
api_key = "key"

[orders]
api_url = "https://orders.example"
`)

	cfg, err := provideConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example", cfg.WAPI.APIURL)
}
