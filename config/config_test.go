package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lambda-feedback/tether/internal/execution/output"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
	"github.com/lambda-feedback/tether/util/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := conf.Parse[Config](conf.ParseOptions{
		Defaults:  DefaultConfig,
		EnvPrefix: EnvPrefix,
	})
	require.NoError(t, err)

	sv := cfg.Runtime.Supervisor

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, supervisor.DefaultSocket, sv.Socket)
	assert.Equal(t, 90*time.Second, sv.StartupTimeout)
	assert.Equal(t, 5*time.Second, sv.TerminationTimeout)
	assert.Equal(t, 5*time.Second, sv.KillTimeout)
	assert.Equal(t, 2, sv.Retries)
	assert.False(t, sv.ExitExpectedAtStartup)
	assert.Equal(t, output.DefaultMarker, sv.Output.Marker)
	assert.Empty(t, cfg.Auth.Key)
}

func TestConfig_Layering(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"auth": {"key": "from-file"},
		"runtime": {
			"supervisor": {"cmd": "trace-worker", "args": ["--verbose"], "startup_timeout": "30s"},
			"send": {"timeout": "10s"}
		}
	}`), 0o600))

	t.Setenv("TETHER_AUTH__KEY", "from-env")
	t.Setenv("TETHER_RUNTIME__SUPERVISOR__RETRIES", "5")

	cfg, err := conf.Parse[Config](conf.ParseOptions{
		Defaults:  DefaultConfig,
		EnvPrefix: EnvPrefix,
		FileName:  file,
	})
	require.NoError(t, err)

	sv := cfg.Runtime.Supervisor

	assert.Equal(t, "from-env", cfg.Auth.Key)
	assert.Equal(t, "trace-worker", sv.Worker.Cmd)
	assert.Equal(t, []string{"--verbose"}, sv.Worker.Args)
	assert.Equal(t, 30*time.Second, sv.StartupTimeout)
	assert.Equal(t, 5, sv.Retries)
	assert.Equal(t, 10*time.Second, cfg.Runtime.Send.Timeout)
	assert.Equal(t, 5*time.Second, sv.KillTimeout)
}
