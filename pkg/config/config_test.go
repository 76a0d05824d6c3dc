package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kektorgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":9094", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	require.Len(t, cfg.Backends, 1)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
http_addr: ":8080"
log_format: json
query_timeout: 2s
max_frontier: 500
default_backend: kv
backends:
  - name: kv
    type: badger
    options:
      path: /var/lib/kektorgraph
      cache_max_items: 1000
  - name: graph
    type: neo4j
    options:
      uri: bolt://localhost:7687
services:
  social: [user_id]
labels:
  - name: knows
    direction: both
    backend: graph
    src_service: social
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel, "unset fields keep their default")
	assert.Equal(t, 2*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 500, cfg.MaxFrontier)
	require.Len(t, cfg.Backends, 2)
	assert.Equal(t, "/var/lib/kektorgraph", cfg.Backends[0].Options["path"])
	assert.Equal(t, 1000, cfg.Backends[0].Options["cache_max_items"])
	assert.Equal(t, []string{"user_id"}, cfg.Services["social"])
	assert.Equal(t, "both", cfg.Labels[0].Direction)
}

func TestLoadConfigStrict(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "http_adr: \":1\"\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"duplicate backend": func(c *Config) { c.Backends = append(c.Backends, c.Backends[0]) },
		"no backends":       func(c *Config) { c.Backends = nil },
		"unknown default":   func(c *Config) { c.DefaultBackend = "nope" },
		"label backend":     func(c *Config) { c.Labels = []Label{{Name: "knows", Backend: "nope"}} },
		"label direction":   func(c *Config) { c.Labels = []Label{{Name: "knows", Direction: "up"}} },
		"negative timeout":  func(c *Config) { c.QueryTimeout = -time.Second },
		"log format":        func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
