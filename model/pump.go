package model

import (
	"context"
	"slices"
	"sync"
)

// Pump hands signals to a consumer that may block, such as a UI event loop
// or a network connection. Notify never blocks: signals raised while the
// consumer is busy are merged, in first-raised order, into its next batch.
type Pump struct {
	deliver func([]Signal)

	mu      sync.Mutex
	pending []Signal
	wake    chan struct{}
}

// NewPump returns a pump delivering batches to deliver. Call Run to start it.
func NewPump(deliver func([]Signal)) *Pump {
	return &Pump{
		deliver: deliver,
		wake:    make(chan struct{}, 1),
	}
}

// Notify queues sig. It is a Listener.
func (p *Pump) Notify(sig Signal) {
	p.mu.Lock()
	if !slices.Contains(p.pending, sig) {
		p.pending = append(p.pending, sig)
	}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run delivers batches until ctx is done.
func (p *Pump) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}

		p.mu.Lock()
		batch := p.pending
		p.pending = nil
		p.mu.Unlock()

		if len(batch) > 0 {
			p.deliver(batch)
		}
	}
}
