package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHttpServer_ServesRoutes(t *testing.T) {
	ctx := context.Background()

	health := AsHttpHandler("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":"ready"}`))
	}))

	server := NewHttpServer(HttpServerParams{
		Context:  ctx,
		Config:   HttpConfig{Host: "127.0.0.1", Port: 0},
		Handlers: []*HttpHandler{health.Handler},
		Logger:   zaptest.NewLogger(t),
	})

	listener, err := server.Listen(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- server.Serve(listener) }()

	res, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"state":"ready"}`, string(body))

	res, err = http.Get("http://" + listener.Addr().String() + "/unknown")
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	require.NoError(t, server.Shutdown(ctx))
	require.NoError(t, <-done)
}

func TestHttpServer_ListenFails(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	server := NewHttpServer(HttpServerParams{
		Context: context.Background(),
		Config: HttpConfig{
			Host: "127.0.0.1",
			Port: taken.Addr().(*net.TCPAddr).Port,
		},
		Logger: zaptest.NewLogger(t),
	})

	_, err = server.Listen(context.Background())
	assert.Error(t, err)
}
