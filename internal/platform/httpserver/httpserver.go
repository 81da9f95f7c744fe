package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for a kiosk-local API.
// WriteTimeout stays above the longest document lookup a client may wait on.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
