package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cardroom-server/internal/config"
	"cardroom-server/internal/events"
	"cardroom-server/internal/registry"
	"cardroom-server/internal/room"
	"cardroom-server/internal/session"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	cleanupInterval = time.Hour
	finishedMaxAge  = 24 * time.Hour
)

type Server struct {
	cfg               config.Config
	log               logrus.FieldLogger
	backends          *Backends
	registry          *registry.Registry
	engine            *session.Engine
	connectionManager *ConnectionManager
	dispatcher        events.Dispatcher
	fanout            *Fanout
	rateLimiter       *RateLimiter
	connectionHealth  *ConnectionHealth
	handlers          sync.WaitGroup
}

// New wires the registry and session engine on top of b.
func New(cfg config.Config, log logrus.FieldLogger, b *Backends, opts ...session.Option) (*Server, error) {
	policy, err := session.ParseDuplicateNamePolicy(cfg.DuplicateNamePolicy)
	if err != nil {
		return nil, err
	}

	reg := registry.New(b.Store, log,
		registry.WithLocker(b.Locker),
		registry.WithLockWait(cfg.LockWait),
	)
	opts = append([]session.Option{session.WithDuplicateNamePolicy(policy)}, opts...)

	s := &Server{
		cfg:               cfg,
		log:               log,
		backends:          b,
		registry:          reg,
		engine:            session.New(reg, log, opts...),
		connectionManager: NewConnectionManager(reg.Members, log),
		rateLimiter:       NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		connectionHealth:  NewConnectionHealth(),
	}
	s.dispatcher = s.connectionManager

	// Rooms shared through the Redis lock can have members on other
	// processes.
	if cfg.LockBackend == config.LockRedis && b.Redis != nil {
		s.fanout = NewFanout(b.Redis, cfg.RedisPrefix, s.connectionManager, log)
		s.dispatcher = s.fanout
	}
	return s, nil
}

// HTTPServer returns the listener configuration for s.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run performs startup recovery and then runs the background tasks until
// ctx is done.
func (s *Server) Run(ctx context.Context) error {
	// With a process-local lock this is the only process, so nobody else can
	// hold the connections recorded in the store.
	if s.cfg.LockBackend == config.LockLocal {
		if err := s.pruneOrphanedRooms(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to prune persisted rooms")
		}
	}

	if s.fanout != nil {
		if err := s.fanout.Subscribe(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.sweepTask(ctx)
		return nil
	})
	if lister, ok := s.backends.Store.(room.FinishedLister); ok {
		g.Go(func() error {
			s.cleanupTask(ctx, lister)
			return nil
		})
	}
	if s.fanout != nil {
		g.Go(func() error {
			return s.fanout.Run(ctx)
		})
	}
	return g.Wait()
}

// pruneOrphanedRooms unseats players whose connection is not open on this
// process. Rooms left empty are deleted.
func (s *Server) pruneOrphanedRooms(ctx context.Context) error {
	names, err := s.registry.Names(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, name := range names {
		evs, removed, err := s.engine.Prune(ctx, name, s.connectionManager.Has)
		if err != nil {
			s.log.WithField("room", name).WithError(err).Warn("Failed to prune room")
			continue
		}
		total += removed
		s.deliver(ctx, evs)
	}

	s.log.WithFields(logrus.Fields{
		"rooms":   len(names),
		"removed": total,
	}).Info("Restored persisted rooms")
	return nil
}

// sweepTask closes sockets that have been silent longer than the idle
// timeout. Closing ends the read loop, which unseats the player.
func (s *Server) sweepTask(ctx context.Context) {
	interval := s.cfg.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdle()
		}
	}
}

func (s *Server) sweepIdle() int {
	closed := 0
	for _, id := range s.connectionHealth.GetInactiveConnections(s.cfg.IdleTimeout) {
		conn := s.connectionManager.GetConnection(id)
		s.connectionHealth.RemoveConnection(id)
		if conn == nil {
			continue
		}
		s.log.WithField("conn", id).Info("Closing idle connection")
		conn.Close(websocket.StatusPolicyViolation, "Idle timeout")
		closed++
	}
	s.rateLimiter.Cleanup()
	return closed
}

// cleanupTask deletes finished games that nobody has touched for a day.
func (s *Server) cleanupTask(ctx context.Context, lister room.FinishedLister) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.cleanupFinished(ctx, lister)
			if err != nil {
				s.log.WithError(err).Error("Cleanup task failed")
				continue
			}
			if deleted > 0 {
				s.log.WithField("deleted", deleted).Info("Cleanup task removed finished rooms")
			}
		}
	}
}

// cleanupFinished deletes the rooms lister reports, each inside its own
// section so a room revived since the listing is kept.
func (s *Server) cleanupFinished(ctx context.Context, lister room.FinishedLister) (int, error) {
	cutoff := s.registry.Now().Add(-finishedMaxAge)
	names, err := lister.FinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, name := range names {
		ok, err := s.registry.DeleteIf(ctx, name, func(r *room.Room) bool {
			return r.Status == room.StatusFinished && r.UpdatedAt.Before(cutoff)
		})
		if err != nil {
			s.log.WithField("room", name).WithError(err).Warn("Failed to delete finished room")
			continue
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// Shutdown closes every open socket and waits for their handlers to unseat
// the players, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	n := s.connectionManager.Count()
	s.connectionManager.CloseAll("Server shutting down")

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.WithField("connections", n).Info("Closed websocket connections")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
