package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-poblado/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// LoopSnapshotProvider provides current event loop stats snapshots.
type LoopSnapshotProvider interface {
	Stats() core.RunnerStats
}

// SnapshotPoller periodically exports loop Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	loopsMu sync.RWMutex
	loops   map[string]LoopSnapshotProvider

	loopPending     *prom.GaugeVec
	loopActiveIdles *prom.GaugeVec
	loopDelayed     *prom.GaugeVec
	loopRefs        *prom.GaugeVec
	loopIterations  *prom.GaugeVec
	loopRejected    *prom.GaugeVec
	loopRunning     *prom.GaugeVec

	// done is non-nil while polling
	stateMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "poblado"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"loop"})
	}

	p := &SnapshotPoller{
		interval:        interval,
		loops:           make(map[string]LoopSnapshotProvider),
		loopPending:     gauge("loop_pending", "Queued tasks per loop."),
		loopActiveIdles: gauge("loop_active_idles", "Active idle handles per loop."),
		loopDelayed:     gauge("loop_delayed", "Delayed tasks waiting for their deadline per loop."),
		loopRefs:        gauge("loop_refs", "Outstanding keep-alive references per loop."),
		loopIterations:  gauge("loop_iterations", "Loop iteration count snapshot."),
		loopRejected:    gauge("loop_rejected", "Loop rejected task count snapshot."),
		loopRunning:     gauge("loop_running", "Loop running state (1=running, 0=stopped)."),
	}

	var err error
	for _, g := range []**prom.GaugeVec{
		&p.loopPending,
		&p.loopActiveIdles,
		&p.loopDelayed,
		&p.loopRefs,
		&p.loopIterations,
		&p.loopRejected,
		&p.loopRunning,
	} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// AddLoop adds or replaces a loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "loop")
	p.loopsMu.Lock()
	p.loops[name] = provider
	p.loopsMu.Unlock()
}

// Start begins periodic polling until ctx is done or Stop is called.
// Calling Start on a running poller does nothing.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.done != nil {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go func() {
		defer close(done)
		p.poll(pollCtx)
	}()
}

// Stop cancels polling and waits for the final collection. Safe to call
// more than once.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.stateMu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
}

func (p *SnapshotPoller) poll(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.collectOnce()
		select {
		case <-ctx.Done():
			// One last snapshot so the gauges reflect the final state
			p.collectOnce()
			return
		case <-ticker.C:
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.loopsMu.RLock()
	defer p.loopsMu.RUnlock()

	for name, provider := range p.loops {
		stats := provider.Stats()
		p.loopPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.loopActiveIdles.WithLabelValues(name).Set(float64(stats.ActiveIdles))
		p.loopDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.loopRefs.WithLabelValues(name).Set(float64(stats.Refs))
		p.loopIterations.WithLabelValues(name).Set(float64(stats.Iterations))
		p.loopRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		if stats.Running {
			p.loopRunning.WithLabelValues(name).Set(1)
		} else {
			p.loopRunning.WithLabelValues(name).Set(0)
		}
	}
}
