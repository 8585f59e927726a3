package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "isis-master", cfg.App.Name)
	assert.Equal(t, 10*time.Millisecond, cfg.Player.Tick)
	assert.Equal(t, "absolute", cfg.Player.WaitMode)
	assert.Equal(t, "dir", cfg.Programs.Store)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.False(t, cfg.Bridge.Enable)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
player:
  tick: 20ms
  waitMode: relative
serial:
  device: /dev/ttyUSB0
  baud: 57600
api:
  keys: ["k1", "k2"]
`), 0o644))
	t.Setenv("ISIS_SERIAL_BAUD", "115200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, cfg.Player.Tick)
	assert.Equal(t, "relative", cfg.Player.WaitMode)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, []string{"k1", "k2"}, cfg.API.Keys)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("player:\n  waitMode: sideways\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "waitMode")

	require.NoError(t, os.WriteFile(path, []byte("programs:\n  store: db\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "database.enabled")
}
