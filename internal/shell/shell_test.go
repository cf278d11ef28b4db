package shell

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap/zaptest"
)

func shutdownOnStart(code int) fx.Option {
	return fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() { _ = shutdowner.Shutdown(fx.ExitCode(code)) }()
				return nil
			},
		})
	})
}

func TestShell_Run_ExitCode(t *testing.T) {
	s := New(zaptest.NewLogger(t))

	err := s.Run(context.Background(), shutdownOnStart(3))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
}

func TestShell_Run_CleanExit(t *testing.T) {
	s := New(zaptest.NewLogger(t))

	assert.NoError(t, s.Run(context.Background(), shutdownOnStart(0)))
}

func TestShell_Run_StartFails(t *testing.T) {
	stopped := false

	s := New(zaptest.NewLogger(t), fx.Invoke(func(lc fx.Lifecycle) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return errors.New("boom")
			},
			OnStop: func(context.Context) error {
				stopped = true
				return nil
			},
		})
	}))

	err := s.Run(context.Background())

	assert.True(t, IsExitError(err))
	assert.False(t, stopped)
}

func TestShell_SuppliesContext(t *testing.T) {
	type key struct{}

	ctx := context.WithValue(context.Background(), key{}, "value")

	var got any

	s := New(zaptest.NewLogger(t), fx.Invoke(func(ctx context.Context) {
		got = ctx.Value(key{})
	}))

	require.NoError(t, s.Run(ctx, shutdownOnStart(0)))
	assert.Equal(t, "value", got)
}
