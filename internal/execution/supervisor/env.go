package supervisor

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/dotenv"
)

const (
	// EnvSocketPath tells the worker where to connect to.
	EnvSocketPath = "TETHER_SOCKET_PATH"

	// EnvSessionID carries the id of the current session.
	EnvSessionID = "TETHER_SESSION_ID"
)

// loadEnvFile reads a dotenv file into a map.
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	values, err := dotenv.Parser().Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file: %w", err)
	}

	env := make(map[string]string, len(values))
	for key, value := range values {
		env[key] = fmt.Sprint(value)
	}

	return env, nil
}

// workerEnv builds the environment overlay of the worker. The env
// file is applied first, then the configured variables, then the
// variables of the protocol.
func (s *Supervisor) workerEnv() (map[string]string, error) {
	env := make(map[string]string)

	if s.config.EnvFile != "" {
		fromFile, err := loadEnvFile(s.config.EnvFile)
		if err != nil {
			return nil, err
		}

		for key, value := range fromFile {
			env[key] = value
		}
	}

	for key, value := range s.config.Worker.Env {
		env[key] = value
	}

	env[EnvSocketPath] = s.config.Socket
	env[EnvSessionID] = s.sessionID

	return env, nil
}
