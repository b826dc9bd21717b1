package httpserver

import (
	"net/http"
	"time"
)

// New returns the server for the audit-trail API. Only header reads and idle
// keep-alives are bounded here; per-request deadlines belong to the router's
// timeout middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
