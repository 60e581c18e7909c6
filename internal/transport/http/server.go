// Package httptransport builds the HTTP server shared by the API binary.
package httptransport

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// ServerConfig contains tunables for the HTTP server. WriteTimeout is usually left at zero
// when the server also upgrades websocket connections.
type ServerConfig struct {
	Address           string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	// Logger receives net/http server errors (TLS handshakes, panics in handlers).
	Logger *log.Logger
}

// NewServer creates *http.Server with provided handler.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = cfg.ReadTimeout
	}
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	if cfg.Logger != nil {
		srv.ErrorLog = cfg.Logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})
	}
	return srv
}
