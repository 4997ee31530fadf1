package datasource

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const healthProbeConcurrency = 4

// healthChecker probes every registered data source on a fixed interval
// and persists the outcome through TestDataSource.
type healthChecker struct {
	manager  *Manager
	interval time.Duration

	// inFlight guards against overlapping sweeps when probes run longer
	// than the interval. A tick that finds a sweep running is skipped.
	inFlight atomic.Bool

	stop chan struct{}
	done chan struct{}
}

// StartHealthCheck begins periodic connectivity probing. A non-positive
// interval defaults to 30s. Calling it while a checker is already running
// is a no-op.
func (m *Manager) StartHealthCheck(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.health != nil {
		return
	}
	h := &healthChecker{
		manager:  m,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.health = h
	go h.run()
}

// StopHealthCheck stops the periodic probing and waits for an in-flight
// sweep to finish.
func (m *Manager) StopHealthCheck() {
	m.mu.Lock()
	h := m.health
	m.health = nil
	m.mu.Unlock()
	if h == nil {
		return
	}
	close(h.stop)
	<-h.done
}

func (h *healthChecker) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if !h.inFlight.CompareAndSwap(false, true) {
				continue
			}
			h.sweep()
			h.inFlight.Store(false)
		}
	}
}

// sweep probes every data source with bounded concurrency. Individual
// probe failures are recorded on the source and otherwise swallowed.
func (h *healthChecker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), h.interval)
	defer cancel()

	configs, err := h.manager.ListDataSources(ctx)
	if err != nil {
		return
	}

	sem := make(chan struct{}, healthProbeConcurrency)
	var wg sync.WaitGroup
	for _, cfg := range configs {
		select {
		case <-h.stop:
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			_, _ = h.manager.TestDataSource(ctx, id)
		}(cfg.ID)
	}
	wg.Wait()
}
