package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(handler http.Handler) *Server {
	return New(handler, Options{ShutdownTimeout: 2 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	srv := testServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	workerStarted := make(chan struct{})
	srv.Go("worker", func(ctx context.Context) error {
		close(workerStarted)
		<-ctx.Done()
		record("worker")
		return ctx.Err()
	})
	srv.OnShutdown("first", func(context.Context) error {
		record("first")
		return nil
	})
	srv.OnShutdown("second", func(context.Context) error {
		record("second")
		return nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	<-workerStarted
	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"second", "first", "worker"}, order)
}

func TestServer_ShutdownErrorsJoined(t *testing.T) {
	t.Parallel()

	srv := testServer(http.NotFoundHandler())
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	srv.OnShutdown("a", func(context.Context) error { return errA })
	srv.OnShutdown("b", func(context.Context) error { return errB })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = srv.Serve(ctx, ln)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestServer_WorkerFailureDoesNotStopServer(t *testing.T) {
	t.Parallel()

	srv := testServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	failed := make(chan struct{})
	srv.Go("broken", func(context.Context) error {
		defer close(failed)
		return errors.New("boom")
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	<-failed
	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	srv := New(http.NotFoundHandler(), Options{Port: 9090}, slog.Default())
	assert.Equal(t, ":9090", srv.Addr())
	assert.Equal(t, 30*time.Second, srv.shutdownTimeout)
	assert.Equal(t, 120*time.Second, srv.httpServer.IdleTimeout)
}
