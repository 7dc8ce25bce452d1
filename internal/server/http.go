package server

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Instance wraps the relay's http server to own its start/shutdown cycle.
type Instance struct {
	lg         *log.Logger
	httpServer *http.Server
}

func NewInstance(lg *log.Logger) *Instance {

	s := &Instance{
		lg:         lg,
		httpServer: &http.Server{},
	}
	s.lg.Info("[http] ...initiating new Instance of the HTTP server...")

	return s
}

// Start binds the listener and serves. It blocks until the server stops.
// Failure to bind is the one fatal condition of the service.
func (s *Instance) Start(addr string, endp http.Handler) error {

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: endp,
	}

	err := s.httpServer.ListenAndServe()
	if err != http.ErrServerClosed {
		s.lg.Errorf("[http] server stopped unexpected: %v", err)
	} else {
		s.lg.Infof("[http] server stopped: %v", err)
	}
	return err
}

// Shutdown drains the server gracefully within a fixed grace period.
func (s *Instance) Shutdown() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.lg.Errorf("[http] failed to shutdown the server gracefully: %v", err)
		return
	}
	s.httpServer = nil
}
