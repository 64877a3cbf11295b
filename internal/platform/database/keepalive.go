package database

import (
	"context"
	"sync"
	"time"

	"github.com/plusmaps/atlas/internal/app/system"
	"github.com/plusmaps/atlas/pkg/logger"
)

var _ system.Service = (*Keepalive)(nil)

// Keepalive periodically re-validates the database handle so the first
// request after an idle period does not pay the reconnect cost. It is
// optional; an interval of zero disables it entirely.
type Keepalive struct {
	mgr      *Manager
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewKeepalive constructs a lifecycle-managed pinger for the manager.
func NewKeepalive(mgr *Manager, interval time.Duration, log *logger.Logger) *Keepalive {
	if log == nil {
		log = logger.NewDefault("db-keepalive")
	}
	return &Keepalive{mgr: mgr, interval: interval, log: log}
}

func (k *Keepalive) Name() string { return "db-keepalive" }

func (k *Keepalive) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.interval <= 0 {
		k.mu.Unlock()
		k.log.Debug("keepalive disabled")
		return nil
	}
	if k.running {
		k.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.running = true
	k.mu.Unlock()

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				k.tick(runCtx)
			}
		}
	}()

	k.log.Infof("database keepalive started (every %s)", k.interval)
	return nil
}

func (k *Keepalive) Stop(ctx context.Context) error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	cancel := k.cancel
	k.running = false
	k.cancel = nil
	k.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		k.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	k.log.Info("database keepalive stopped")
	return nil
}

func (k *Keepalive) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := k.mgr.Ensure(ctx, 1, 0); err != nil {
		k.log.WithError(err).Warn("database keepalive ping failed")
	}
}
