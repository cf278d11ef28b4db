package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

type testWorker struct {
	Cmd  string   `conf:"cmd"`
	Args []string `conf:"args"`
}

type testConfig struct {
	LogLevel string        `conf:"log_level"`
	Timeout  time.Duration `conf:"timeout"`
	Worker   testWorker    `conf:"worker"`
}

func TestTransformEnv(t *testing.T) {
	assert.Equal(t, "log_level", transformEnv("TETHER_LOG_LEVEL", "TETHER_"))
	assert.Equal(t, "runtime.supervisor.startup_timeout", transformEnv("TETHER_RUNTIME__SUPERVISOR__STARTUP_TIMEOUT", "TETHER_"))
	assert.Equal(t, "worker.cmd", transformEnv("WORKER__CMD", ""))
}

func TestMergeDefaults(t *testing.T) {
	merged := MergeDefaults("runtime", map[string]any{"a": 1}, map[string]any{"b": 2})

	assert.Equal(t, map[string]any{"runtime.a": 1, "runtime.b": 2}, merged)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse[testConfig](ParseOptions{
		Defaults:  DefaultConfig{"log_level": "info", "timeout": "2s"},
		EnvPrefix: "TETHER_TEST_CONF_",
	})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestParse_EnvOverridesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"log_level":"debug","worker":{"cmd":"from-file"}}`), 0o600))

	t.Setenv("TETHER_TEST_CONF_WORKER__CMD", "from-env")

	cfg, err := Parse[testConfig](ParseOptions{
		EnvPrefix: "TETHER_TEST_CONF_",
		FileName:  file,
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "from-env", cfg.Worker.Cmd)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse[testConfig](ParseOptions{
		FileName: filepath.Join(t.TempDir(), "missing.json"),
	})
	assert.Error(t, err)
}

func TestParse_CliFlags(t *testing.T) {
	var cfg testConfig

	app := &cli.App{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level"},
			&cli.StringFlag{Name: "command"},
			&cli.StringSliceFlag{Name: "arg"},
			&cli.DurationFlag{Name: "timeout", Value: time.Minute},
		},
		Action: func(ctx *cli.Context) error {
			var err error
			cfg, err = Parse[testConfig](ParseOptions{
				Cli: ctx,
				CliMap: map[string]string{
					"command": "worker.cmd",
					"arg":     "worker.args",
				},
				Defaults:  DefaultConfig{"log_level": "info"},
				EnvPrefix: "TETHER_TEST_CONF_",
			})
			return err
		},
	}

	err := app.Run([]string{"test",
		"--log-level", "warn",
		"--command", "trace-worker",
		"--arg", "-a", "--arg", "-b",
		"--timeout", "3s",
	})
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "trace-worker", cfg.Worker.Cmd)
	assert.Equal(t, []string{"-a", "-b"}, cfg.Worker.Args)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestParse_UnsetFlagsKeepDefaults(t *testing.T) {
	var cfg testConfig

	app := &cli.App{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "error"},
		},
		Action: func(ctx *cli.Context) error {
			var err error
			cfg, err = Parse[testConfig](ParseOptions{
				Cli:       ctx,
				Defaults:  DefaultConfig{"log_level": "info"},
				EnvPrefix: "TETHER_TEST_CONF_",
			})
			return err
		},
	}

	require.NoError(t, app.Run([]string{"test"}))

	assert.Equal(t, "info", cfg.LogLevel)
}
