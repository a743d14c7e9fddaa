// Package httpserver owns http.Server construction so timeouts stay
// consistent between production and tests.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server with sane timeouts for a gateway that spends
// most of its request time waiting on collaborators.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
