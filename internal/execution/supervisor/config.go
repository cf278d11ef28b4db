package supervisor

import (
	"time"

	"github.com/lambda-feedback/tether/internal/execution/output"
	"github.com/lambda-feedback/tether/internal/execution/worker"
)

const (
	DefaultSocket             = "/tmp/tether.sock"
	DefaultStartupTimeout     = 90 * time.Second
	DefaultTerminationTimeout = 5 * time.Second
	DefaultKillTimeout        = 5 * time.Second
	DefaultRetries            = 2
)

// StartConfig describes the configuration for starting the worker.
type StartConfig = worker.StartConfig

type Config struct {
	// Worker describes the binary, arguments and environment of the
	// worker. The working directory is always the scratch directory.
	Worker StartConfig `conf:",squash"`

	// Socket is the path of the unix socket the worker connects to.
	Socket string `conf:"socket"`

	// ScratchDir is the working directory of the worker. It is
	// emptied before every launch. If empty, a temporary directory
	// is created per session and removed when the session ends.
	ScratchDir string `conf:"scratch_dir"`

	// StartupTimeout bounds the time between spawn and check-in.
	StartupTimeout time.Duration `conf:"startup_timeout"`

	// TerminationTimeout is the time the worker is given to exit
	// after SIGTERM, before it is killed.
	TerminationTimeout time.Duration `conf:"termination_timeout"`

	// KillTimeout is the time the worker is given to exit after
	// SIGKILL, before the supervisor stops waiting for it.
	KillTimeout time.Duration `conf:"kill_timeout"`

	// Retries is the number of transparent relaunches after the
	// worker crashed at startup or never checked in.
	Retries int `conf:"retries"`

	// ExitExpectedAtStartup treats an exit before check-in as a
	// normal completion instead of a crash.
	ExitExpectedAtStartup bool `conf:"exit_expected_at_startup"`

	// EnvFile is an optional dotenv file merged into the worker
	// environment. Entries of Worker.Env take precedence.
	EnvFile string `conf:"env_file"`

	// Output configures the filtering of worker output.
	Output output.Config `conf:"output"`
}

// withDefaults fills unset fields. Retries is left alone, zero
// disables retrying.
func (c Config) withDefaults() Config {
	if c.Socket == "" {
		c.Socket = DefaultSocket
	}

	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}

	if c.TerminationTimeout <= 0 {
		c.TerminationTimeout = DefaultTerminationTimeout
	}

	if c.KillTimeout <= 0 {
		c.KillTimeout = DefaultKillTimeout
	}

	return c
}
