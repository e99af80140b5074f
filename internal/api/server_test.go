package api_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/testutil"
)

func TestServerShutdownEndsEventStreams(t *testing.T) {
	ts := newTestServer(t)
	// Registration goes through the recorder; only the stream needs a socket
	auth := register(t, ts, "tairitsu", "dev-a")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := api.DefaultServerConfig(ln.Addr().String())
	cfg.ShutdownTimeout = 5 * time.Second
	server := api.NewServer(ts.handler, cfg, testutil.NopLogger())
	server.OnShutdown(func() { _ = ts.app.Notifier.Close() })

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ln) }()

	reader := openStream(t, ts, "http://"+ln.Addr().String(), auth)

	start := time.Now()
	require.NoError(t, server.Shutdown(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
	require.NoError(t, <-serveErr)

	_, err = io.ReadAll(reader)
	assert.NoError(t, err)
}
