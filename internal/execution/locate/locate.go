// Package locate resolves the worker binary before it is spawned.
package locate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrResolution is wrapped by every error returned from a Locator.
var ErrResolution = errors.New("worker binary could not be resolved")

// Locator finds the worker binary.
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

// PathLocator resolves a binary name against PATH, or checks that an
// explicit path points to an executable file.
type PathLocator struct {
	// Name is a binary name or a path containing a separator.
	Name string
}

var _ Locator = PathLocator{}

func (l PathLocator) Locate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, err)
	}

	if l.Name == "" {
		return "", fmt.Errorf("%w: no binary configured", ErrResolution)
	}

	if !strings.ContainsRune(l.Name, os.PathSeparator) {
		path, err := exec.LookPath(l.Name)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrResolution, err)
		}

		return path, nil
	}

	path, err := filepath.Abs(l.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrResolution, path)
	}

	return path, nil
}

// StaticLocator always returns Path, or Err if set.
type StaticLocator struct {
	Path string
	Err  error
}

var _ Locator = StaticLocator{}

func (l StaticLocator) Locate(context.Context) (string, error) {
	if l.Err != nil {
		return "", fmt.Errorf("%w: %w", ErrResolution, l.Err)
	}

	return l.Path, nil
}
