package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEnv_OverlayWins(t *testing.T) {
	inherited := []string{"PATH=/bin", "HOME=/root", "LANG=C"}

	env := BuildEnv(inherited, map[string]string{
		"LANG":    "en_US.UTF-8",
		"LIB_DIR": "/opt/lib",
	})

	assert.Equal(t, []string{
		"PATH=/bin",
		"HOME=/root",
		"LANG=en_US.UTF-8",
		"LIB_DIR=/opt/lib",
	}, env)
}

func TestBuildEnv_NilOverlay(t *testing.T) {
	inherited := []string{"PATH=/bin"}

	assert.Equal(t, inherited, BuildEnv(inherited, nil))
}
