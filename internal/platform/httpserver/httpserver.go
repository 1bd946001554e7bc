package httpserver

import (
	"net/http"
	"time"
)

// New builds the wizard's HTTP server. The wizard is driven by a browser UI
// making small JSON calls, so generous keep-alive with tight header and
// write deadlines fits the traffic.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
