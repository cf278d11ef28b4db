// Package scratch manages the working directory of the worker.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Prepare makes sure dir exists and is empty. If dir is empty, a new
// directory below the system temp dir is created. The prepared path
// is returned.
func Prepare(dir string) (string, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "tether-"+uuid.NewString())
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}

	if err := Clean(dir); err != nil {
		return "", err
	}

	return dir, nil
}

// Clean removes all entries of dir, keeping dir itself.
func Clean(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read scratch dir: %w", err)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clean scratch dir: %w", err)
		}
	}

	return nil
}

// Remove deletes dir and everything below it.
func Remove(dir string) error {
	return os.RemoveAll(dir)
}
