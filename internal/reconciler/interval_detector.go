package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/giantswarm/multibranch/pkg/logging"
)

// IntervalDetector emits a change event for every project at its sync
// interval. Each project has its own ticker.
type IntervalDetector struct {
	mu sync.Mutex

	ctx     context.Context
	changes chan<- ChangeEvent
	running bool

	watches map[string]time.Duration
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewIntervalDetector creates an interval detector.
func NewIntervalDetector() *IntervalDetector {
	return &IntervalDetector{
		watches: make(map[string]time.Duration),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start begins ticking for all registered projects.
func (d *IntervalDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	d.ctx = ctx
	d.changes = changes
	d.running = true

	for name, interval := range d.watches {
		d.startTicker(name, interval)
	}
	logging.Info("IntervalDetector", "Started periodic sync for %d projects", len(d.watches))
	return nil
}

// startTicker must be called with d.mu held.
func (d *IntervalDetector) startTicker(name string, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(d.ctx)
	d.cancels[name] = cancel
	changes := d.changes

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				select {
				case changes <- ChangeEvent{
					Project:   name,
					Operation: OperationUpdate,
					Timestamp: now,
					Source:    SourceInterval,
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// Stop stops all tickers.
func (d *IntervalDetector) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	for name, cancel := range d.cancels {
		cancel()
		delete(d.cancels, name)
	}
	d.mu.Unlock()

	d.wg.Wait()
	logging.Info("IntervalDetector", "Stopped interval detector")
	return nil
}

// GetSource returns SourceInterval.
func (d *IntervalDetector) GetSource() ChangeSource {
	return SourceInterval
}

// AddProject starts or restarts the ticker of a project.
func (d *IntervalDetector) AddProject(w ProjectWatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cancel, ok := d.cancels[w.Name]; ok {
		cancel()
		delete(d.cancels, w.Name)
	}
	d.watches[w.Name] = w.Interval
	if d.running {
		d.startTicker(w.Name, w.Interval)
	}
	return nil
}

// RemoveProject stops the ticker of a project.
func (d *IntervalDetector) RemoveProject(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cancel, ok := d.cancels[name]; ok {
		cancel()
		delete(d.cancels, name)
	}
	delete(d.watches, name)
	return nil
}
