package model

import "sync"

// mailbox is an unbounded FIFO of operations run by a single goroutine.
// Posting never blocks, so listeners invoked from the loop may post back
// without deadlocking.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newMailbox() *mailbox {
	m := &mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go m.loop()

	return m
}

// post enqueues fn. It reports false once the mailbox is closed.
func (m *mailbox) post(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return false
	}

	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	m.signal()

	return true
}

func (m *mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) loop() {
	defer close(m.done)

	for range m.wake {
		for {
			m.mu.Lock()
			batch := m.queue
			m.queue = nil
			closed := m.closed
			m.mu.Unlock()

			if len(batch) == 0 {
				if closed {
					return
				}

				break
			}

			for _, fn := range batch {
				fn()
			}
		}
	}
}

// close stops accepting operations, drains the queue and waits for the
// loop to exit. It must not be called from the loop goroutine.
func (m *mailbox) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done

		return
	}

	m.closed = true
	m.mu.Unlock()

	m.signal()
	<-m.done
}

// signalQueue serializes signal delivery without holding a lock across
// listener calls. Whichever goroutine finds the queue idle drains it;
// signals raised meanwhile, including from inside a listener, are queued
// and delivered by that goroutine in order.
type signalQueue struct {
	mu       sync.Mutex
	pending  []Signal
	draining bool
}

func (q *signalQueue) raise(sig Signal, deliver func(Signal)) {
	q.mu.Lock()
	q.pending = append(q.pending, sig)

	if q.draining {
		q.mu.Unlock()

		return
	}

	q.draining = true
	q.mu.Unlock()

	defer func() {
		// A panicking listener must not leave the queue stuck draining.
		if r := recover(); r != nil {
			q.mu.Lock()
			q.draining = false
			q.mu.Unlock()

			panic(r)
		}
	}()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()

			return
		}

		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		deliver(next)
	}
}
