package eventlog

import (
	"context"
	"sync"
	"time"
)

// ReaperConfig configures the background expiry sweep.
type ReaperConfig struct {
	// Interval is how often expired entries are purged. Default: 30s.
	Interval time.Duration

	// OnPurge is called after each sweep that removed entries.
	OnPurge func(removed int)

	// OnError is called when a sweep fails.
	OnError func(err error)
}

// Reaper periodically purges expired entries from a store. Queries
// already exclude expired entries, so the reaper only reclaims space.
type Reaper struct {
	store Store
	cfg   ReaperConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewReaper creates a reaper over store.
func NewReaper(store Store, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Reaper{
		store:  store,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	removed, err := r.store.Purge(ctx, time.Now())
	if err != nil {
		if r.cfg.OnError != nil {
			r.cfg.OnError(err)
		}
		return
	}
	if removed > 0 && r.cfg.OnPurge != nil {
		r.cfg.OnPurge(removed)
	}
}
