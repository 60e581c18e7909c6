package httptransport

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/shareactivities/internal/logging"
)

func TestNewServerAppliesConfig(t *testing.T) {
	var buf bytes.Buffer
	srv := NewServer(ServerConfig{
		Address:     ":0",
		ReadTimeout: 5 * time.Second,
		IdleTimeout: time.Minute,
		Logger:      logging.ForTest(&buf),
	}, http.NotFoundHandler())

	require.Equal(t, ":0", srv.Addr)
	require.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	require.Zero(t, srv.WriteTimeout)
	require.NotNil(t, srv.ErrorLog)

	srv.ErrorLog.Print("tls handshake error")
	require.Contains(t, buf.String(), "tls handshake error")
}
