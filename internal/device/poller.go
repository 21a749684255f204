package device

import (
	"context"
	"sync"
	"time"
)

const DefaultPollInterval = 4 * time.Second

// Poller refreshes a Reconciler on a fixed interval while the device
// picker is visible.
type Poller struct {
	rec      *Reconciler
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(rec *Reconciler, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{rec: rec, interval: interval}
}

// SetVisible starts polling when the picker opens and stops it when it
// closes. Repeated calls with the same value do nothing.
func (p *Poller) SetVisible(ctx context.Context, visible bool) {
	if visible {
		p.start(ctx)
	} else {
		p.Stop()
	}
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	ticker := time.NewTicker(p.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		p.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

func (p *Poller) tick(ctx context.Context) {
	// errors are already logged and surfaced by the reconciler
	_ = p.rec.Refresh(ctx)
}

// Stop tears the timer down and waits for an in-progress refresh.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
