package datasource_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
	"github.com/hansduf/WA-Integrasi-sub000/internal/datasource"
	"github.com/hansduf/WA-Integrasi-sub000/internal/plugin"
	"github.com/hansduf/WA-Integrasi-sub000/internal/storage"
)

// slowProbeAdapter holds every connectivity probe for a fixed duration and
// tracks how many probes run at once.
type slowProbeAdapter struct {
	countingAdapter
	hold time.Duration

	probes  atomic.Int64
	current atomic.Int64
	peak    atomic.Int64
}

func (a *slowProbeAdapter) TestConnection(ctx context.Context, cfg backend.Config) backend.TestResult {
	a.probes.Add(1)
	cur := a.current.Add(1)
	defer a.current.Add(-1)
	for {
		peak := a.peak.Load()
		if cur <= peak || a.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(a.hold)
	return backend.TestResult{OK: true, Message: "ok"}
}

// TestHealthCheck_ProbesAndPersists starts the checker with a short
// interval and verifies the probe outcome lands on the records.
func TestHealthCheck_ProbesAndPersists(t *testing.T) {
	adapter := &countingAdapter{}
	m := newTestManager(t, adapter)
	ctx := context.Background()

	if _, err := m.AddDataSource(ctx, tsConfig("ds-ok", nil)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.AddDataSource(ctx, tsConfig("ds-bad", backend.Config{"fail": "yes"})); err != nil {
		t.Fatalf("add: %v", err)
	}

	m.StartHealthCheck(20 * time.Millisecond)
	defer m.StopHealthCheck()

	deadline := time.Now().Add(2 * time.Second)
	for {
		ok, _ := m.GetDataSource(ctx, "ds-ok")
		bad, _ := m.GetDataSource(ctx, "ds-bad")
		if ok != nil && bad != nil &&
			ok.ConnectionStatus == datasource.StatusConnected &&
			bad.ConnectionStatus == datasource.StatusError {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("health probe never recorded: ok=%+v bad=%+v", ok, bad)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestHealthCheck_BoundedAndNonOverlapping runs sweeps that outlive the
// tick interval by a wide margin: probe concurrency must stay at the
// per-sweep cap, which also proves overdue ticks are skipped rather than
// starting a second sweep on top of the running one.
func TestHealthCheck_BoundedAndNonOverlapping(t *testing.T) {
	adapter := &slowProbeAdapter{hold: 25 * time.Millisecond}
	registry := plugin.NewRegistry()
	registry.Register(datasource.PluginTimeseries, plugin.Plugin{
		New: func() backend.Adapter { return adapter },
		ConfigSchema: []plugin.FieldDescriptor{
			{Name: "apiUrl", Type: "string", Required: true},
		},
	})
	m := datasource.NewManager(registry, storage.NewMemoryRepository(), datasource.ManagerConfig{})
	t.Cleanup(m.Close)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if _, err := m.AddDataSource(ctx, tsConfig(fmt.Sprintf("ds-%d", i), nil)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	// Each sweep is 8 probes at cap 4 holding 25ms, so roughly 50ms per
	// sweep against a 10ms tick. Wait for two full sweeps' worth of probes
	// to show the checker keeps sweeping after skipped ticks.
	m.StartHealthCheck(10 * time.Millisecond)
	deadline := time.Now().Add(3 * time.Second)
	for adapter.probes.Load() < 16 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d probes ran", adapter.probes.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	m.StopHealthCheck()

	if peak := adapter.peak.Load(); peak > 4 {
		t.Fatalf("probe concurrency peaked at %d, cap is 4", peak)
	}
	if inFlight := adapter.current.Load(); inFlight != 0 {
		t.Fatalf("%d probes still running after stop", inFlight)
	}
}

func TestHealthCheck_StopIsIdempotent(t *testing.T) {
	m := newTestManager(t, &countingAdapter{})
	m.StartHealthCheck(time.Minute)
	m.StopHealthCheck()
	m.StopHealthCheck()
}
