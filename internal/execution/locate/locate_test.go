package locate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lambda-feedback/tether/internal/execution/locate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathLocator_LooksUpPath(t *testing.T) {
	path, err := locate.PathLocator{Name: "sh"}.Locate(context.Background())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
}

func TestPathLocator_UnknownBinary(t *testing.T) {
	_, err := locate.PathLocator{Name: "tether-no-such-binary"}.Locate(context.Background())
	assert.ErrorIs(t, err, locate.ErrResolution)
}

func TestPathLocator_Empty(t *testing.T) {
	_, err := locate.PathLocator{}.Locate(context.Background())
	assert.ErrorIs(t, err, locate.ErrResolution)
}

func TestPathLocator_ExplicitPath(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "worker")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	path, err := locate.PathLocator{Name: bin}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bin, path)
}

func TestPathLocator_Directory(t *testing.T) {
	_, err := locate.PathLocator{Name: t.TempDir()}.Locate(context.Background())
	assert.ErrorIs(t, err, locate.ErrResolution)
}

func TestStaticLocator(t *testing.T) {
	path, err := locate.StaticLocator{Path: "/bin/true"}.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/bin/true", path)

	_, err = locate.StaticLocator{Err: assert.AnError}.Locate(context.Background())
	assert.ErrorIs(t, err, locate.ErrResolution)
	assert.ErrorIs(t, err, assert.AnError)
}
