package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serial:\n  port: /dev/ttyACM0\n"), 0o644))

	require.NoError(t, LoadConfig(path))

	cfg := AppConfig
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, 2*time.Second, cfg.Serial.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.Serial.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Serial.ResponseTimeout)
	assert.Empty(t, cfg.Serial.InitATCommands, "empty means the modem package default")
	assert.Equal(t, []string{"800"}, cfg.Screening.TollFreePrefixes)
	assert.Equal(t, "off", cfg.Screening.ShortNamePolicy)
	assert.Equal(t, 3, cfg.Screening.ShortNameMinLength)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "callscreen.db", cfg.Database.DSN)
	assert.True(t, cfg.Server.Enabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
serial:
  response_timeout: 5s
  read_timeout: 500ms
screening:
  short_name_policy: with_list
  toll_free_prefixes: ["800", "888"]
blacklist:
  numbers_file: /etc/callscreen/numbers.txt
  cache_ttl: 30s
server:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	require.NoError(t, LoadConfig(path))

	cfg := AppConfig
	assert.Equal(t, 5*time.Second, cfg.Serial.ResponseTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, "with_list", cfg.Screening.ShortNamePolicy)
	assert.Equal(t, []string{"800", "888"}, cfg.Screening.TollFreePrefixes)
	assert.Equal(t, "/etc/callscreen/numbers.txt", cfg.Blacklist.NumbersFile)
	assert.Equal(t, "blacklist_names.csv", cfg.Blacklist.NamesFile)
	assert.Equal(t, 30*time.Second, cfg.Blacklist.CacheTTL)
	assert.False(t, cfg.Server.Enabled)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
