package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule registers the purge and pre-warm jobs on a cron scheduler. The
// caller starts and stops it.
func (s *Server) Schedule() (*cron.Cron, error) {
	loc := s.cfg.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if s.cfg.PurgeSchedule != "" {
		if _, err := c.AddFunc(s.cfg.PurgeSchedule, func() {
			if _, err := s.Purge(context.Background()); err != nil {
				s.logger.Error("Scheduled purge failed", "err", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("purge schedule %q: %w", s.cfg.PurgeSchedule, err)
		}
	}

	if s.cfg.PrewarmSchedule != "" && s.gen != nil {
		if _, err := c.AddFunc(s.cfg.PrewarmSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
			defer cancel()
			_ = s.Refresh(ctx)
		}); err != nil {
			return nil, fmt.Errorf("prewarm schedule %q: %w", s.cfg.PrewarmSchedule, err)
		}
	}
	return c, nil
}

// Run serves until ctx is done, then shuts down gracefully and waits for
// background refreshes.
func (s *Server) Run(ctx context.Context) error {
	sched, err := s.Schedule()
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("Serving", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Shutdown", "err", err)
		}
	}

	s.Wait()
	return nil
}
