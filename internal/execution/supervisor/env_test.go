package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerEnv_Precedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FROM_FILE=file\nSHARED=file\n"), 0o644))

	s := &Supervisor{
		config: Config{
			Worker: StartConfig{
				Env: map[string]string{
					"SHARED":      "config",
					EnvSocketPath: "ignored",
				},
			},
			Socket:  "/tmp/w.sock",
			EnvFile: envFile,
		},
		sessionID: "abc",
	}

	env, err := s.workerEnv()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"FROM_FILE":   "file",
		"SHARED":      "config",
		EnvSocketPath: "/tmp/w.sock",
		EnvSessionID:  "abc",
	}, env)
}

func TestWorkerEnv_MissingEnvFile(t *testing.T) {
	s := &Supervisor{
		config: Config{EnvFile: filepath.Join(t.TempDir(), "missing")},
	}

	_, err := s.workerEnv()
	assert.Error(t, err)
}

func TestState_Terminal(t *testing.T) {
	for _, state := range []State{Terminated, CrashedAtStartup, NeverCheckedIn} {
		assert.True(t, state.Terminal(), state.String())
	}

	for _, state := range []State{Idle, Launching, AwaitingCheckIn, Ready, ShuttingDown} {
		assert.False(t, state.Terminal(), state.String())
	}

	assert.Equal(t, "awaiting_check_in", AwaitingCheckIn.String())
	assert.Equal(t, "unknown", State(99).String())
}
