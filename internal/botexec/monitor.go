package botexec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/events"
)

// Monitor periodically stamps running instances as healthy and fails
// instances stuck in starting or stopping. All state lives in the store,
// so nothing is lost when a process restarts.
type Monitor struct {
	svc      *Service
	interval time.Duration
	timeout  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor returns a monitor that ticks every interval and fails
// transitional instances older than timeout.
func (s *Service) NewMonitor(interval, timeout time.Duration) *Monitor {
	return &Monitor{svc: s, interval: interval, timeout: timeout}
}

// Start runs one sweep immediately, then one per tick.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

// Stop cancels the monitor and waits for the current sweep to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context) {
	m.Sweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep performs one health pass.
func (m *Monitor) Sweep(ctx context.Context) {
	s := m.svc
	now := s.now()
	n, err := s.store.StampHealthy(ctx, now)
	if err != nil {
		s.logger.Error("health stamp failed", "err", err)
	}

	reason := fmt.Sprintf("no progress for %s", m.timeout)
	failed, err := s.store.FailStaleInstances(ctx, now.Add(-m.timeout), reason)
	if err != nil {
		s.logger.Error("failing stale instances", "err", err)
		return
	}
	for _, inst := range failed {
		s.logger.Warn("bot instance failed by health monitor", "bot", inst.BotID, "user", inst.UserID, "instance", inst.ID)
		s.record(ctx, events.TopicBotFailed, inst.BotID, inst.UserID, InstanceEvent{Instance: inst})
	}
	s.logger.Debug("health sweep", "healthy", n, "failed", len(failed))
}
