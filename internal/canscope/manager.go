package canscope

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/canscope/pkg/log"
)

// Server is a component that runs until its context ends (HTTP surface,
// terminal follower).
type Server interface {
	Start(ctx context.Context) error
}

// Run connects, starts every server and blocks until ctx is cancelled or a
// server fails. The scope is disconnected on the way out.
//
// A failed initial connect is recorded in the session and does not stop the
// servers; the HTTP surface can still be used to inspect the error.
func (s *Scope) Run(ctx context.Context, servers ...Server) error {
	if err := s.Connect(ctx); err != nil {
		log.Warn("Starting without a connection", "error", err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	log.Info("All servers starting...", "servers", len(servers))
	<-gctx.Done()
	log.Info("Scope shutting down...")

	var derr error
	if s.Connected() {
		derr = s.Disconnect()
	}
	return errors.Join(g.Wait(), derr)
}
