// Package rcacheserver orchestrates the accept loop, cache engine, service
// stack and admin HTTP endpoint into one running server.
package rcacheserver

import (
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/roadrunner-server/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcache/rcache/internal/admin"
	"github.com/rcache/rcache/internal/cache"
	"github.com/rcache/rcache/internal/config"
	"github.com/rcache/rcache/internal/dispatcher"
	"github.com/rcache/rcache/internal/service"
	"github.com/rcache/rcache/internal/stats"
)

// Server owns the accept loop, the cache engine and the admin endpoint for
// the process lifetime.
type Server struct {
	cfg    config.Server
	log    *zap.SugaredLogger
	engine *cache.Engine
	stats  *stats.Stats
	admin  *admin.Server
	stack  service.Service

	listener net.Listener
}

// New builds a Server ready to Run. It does not bind the listener yet.
func New(cfg config.Server, log *zap.SugaredLogger) *Server {
	engine := cache.New(cfg.CacheSize)
	st := stats.New()
	stack := service.NewStatsMiddleware(service.NewCacheService(engine), st)

	return &Server{
		cfg:    cfg,
		log:    log,
		engine: engine,
		stats:  st,
		admin:  admin.New(cfg.AdminListen, st),
		stack:  stack,
	}
}

// Run binds the listener and blocks until ctx is canceled or a fatal
// accept error occurs. Shutdown errors from the listener and the admin
// server are aggregated with multierr so closing one resource never hides
// a failure closing the other.
func (s *Server) Run(ctx context.Context) error {
	const op = errors.Op("rcacheserver.Run")

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return errors.E(op, err)
	}
	s.listener = ln
	s.log.Infow("listening", "addr", ln.Addr().String(), "cache_size", s.cfg.CacheSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.acceptLoop(gctx)
	})

	g.Go(func() error {
		s.log.Infow("admin endpoint listening", "addr", s.cfg.AdminListen)
		return s.admin.ListenAndServe()
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (s *Server) shutdown(ctx context.Context) error {
	var err error
	err = multierr.Append(err, s.listener.Close())
	err = multierr.Append(err, s.admin.Shutdown(ctx))
	s.engine.Close()
	return err
}

func (s *Server) acceptLoop(ctx context.Context) error {
	const op = errors.Op("rcacheserver.acceptLoop")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.E(op, err)
			}
		}

		connID := uuid.New().String()
		connLog := s.log.With("conn_id", connID, "remote", conn.RemoteAddr().String())
		connLog.Debugw("accepted connection")

		go func() {
			defer connLog.Debugw("closed connection")
			c := dispatcher.New(conn, s.stack, connLog)
			if err := c.Serve(ctx); err != nil {
				connLog.Debugw("connection ended with error", "error", err)
			}
		}()
	}
}
