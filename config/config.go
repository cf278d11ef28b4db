package config

import (
	"github.com/lambda-feedback/tether/internal/execution/output"
	"github.com/lambda-feedback/tether/internal/execution/supervisor"
	"github.com/lambda-feedback/tether/runtime"
	"github.com/lambda-feedback/tether/util/conf"
)

// EnvPrefix is the prefix of environment variables read into the
// config, e.g. TETHER_RUNTIME__SUPERVISOR__CMD.
const EnvPrefix = "TETHER_"

type AuthConfig struct {
	// Key is the api key required on command requests. Empty
	// disables authentication.
	Key string `conf:"key"`
}

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Auth is the authentication config of the http surfaces
	Auth AuthConfig `conf:"auth"`

	// Runtime is the runtime configuration
	Runtime runtime.Config `conf:"runtime"`
}

var DefaultConfig = conf.DefaultConfig{
	"log_level":  "info",
	"log_format": "production",

	"runtime.supervisor.socket":                   supervisor.DefaultSocket,
	"runtime.supervisor.startup_timeout":          supervisor.DefaultStartupTimeout,
	"runtime.supervisor.termination_timeout":      supervisor.DefaultTerminationTimeout,
	"runtime.supervisor.kill_timeout":             supervisor.DefaultKillTimeout,
	"runtime.supervisor.retries":                  supervisor.DefaultRetries,
	"runtime.supervisor.exit_expected_at_startup": false,
	"runtime.supervisor.output.filler":            output.DefaultFiller,
	"runtime.supervisor.output.marker":            output.DefaultMarker,
}
