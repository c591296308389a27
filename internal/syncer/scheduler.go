package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satchel-app/satchel/internal/events"
	"github.com/satchel-app/satchel/internal/log"
	"github.com/satchel-app/satchel/internal/netmon"
)

// DefaultSyncInterval is the cadence of background passes while online.
const DefaultSyncInterval = 30 * time.Second

// Scheduler triggers background sync passes on a fixed interval while the
// network is up, and immediately on an offline-to-online transition.
type Scheduler struct {
	engine   *Engine
	monitor  *netmon.Monitor
	bus      *events.Bus
	interval time.Duration

	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewScheduler creates a scheduler. An interval of zero or less falls back
// to DefaultSyncInterval.
func NewScheduler(engine *Engine, monitor *netmon.Monitor, bus *events.Bus, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Scheduler{
		engine:   engine,
		monitor:  monitor,
		bus:      bus,
		interval: interval,
	}
}

// Start begins background scheduling. Repeated calls while running are
// no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.unsubscribe = s.monitor.Subscribe(func(online bool) {
		s.bus.Publish(events.OnlineStatusChanged{IsOnline: online})
		if online {
			// Connectivity restored: drain the queue right away rather
			// than waiting out the tick.
			s.trigger(ctx)
		}
	})

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)
}

// Stop halts background scheduling and waits for the loop to exit. A pass
// already in flight finishes on its own. The netmon subscription is
// dropped, so reconnects after Stop no longer trigger passes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.monitor.IsOnline() {
				log.Debugf("sync: tick skipped while offline")
				continue
			}
			s.trigger(ctx)
		}
	}
}

// trigger runs one non-forced pass in its own goroutine. Losing the busy
// race is normal and not logged as a failure.
func (s *Scheduler) trigger(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.engine.Sync(ctx); err != nil {
			if errors.Is(err, ErrSyncInProgress) || errors.Is(err, ErrNoCredentials) {
				return
			}
			log.Errorf("sync: scheduled pass failed: %v", err)
		}
	}()
}
