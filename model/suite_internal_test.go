package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/spar"
	"github.com/rlch/spar/enginetest"
)

func TestSuite_RemoveUnitUnsubscribes(t *testing.T) {
	t.Parallel()

	s := NewSuite(func(string) (spar.Engine, error) { return enginetest.New("x"), nil })
	t.Cleanup(s.Close)

	u, err := s.AddUnit("only")
	require.NoError(t, err)
	assert.Equal(t, 1, u.listenerCount())

	require.True(t, s.RemoveUnit("only"))
	assert.Equal(t, 0, u.listenerCount())
}

func TestMailbox_PostFromLoop(t *testing.T) {
	t.Parallel()

	m := newMailbox()

	var order []int

	done := make(chan struct{})

	m.post(func() {
		order = append(order, 1)
		m.post(func() {
			order = append(order, 3)
			close(done)
		})
		order = append(order, 2)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested post never ran")
	}

	m.close()
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.False(t, m.post(func() {}))
}

func TestUnit_LateEventsDropped(t *testing.T) {
	t.Parallel()

	u := NewUnit("late", enginetest.New("a"))
	t.Cleanup(u.Close)

	require.NoError(t, u.WaitDiscovered(context.Background()))

	done, ok := u.Run(context.Background())
	require.True(t, ok)
	<-done

	run := &activeRun{id: "stale", finished: true}
	u.applyRunEvent(run, spar.FinishedEvent("a", spar.GeneralFailure{Message: "late"}))

	r, _ := u.Record("a")
	assert.Equal(t, StatusSuccess, r.Status())
	assert.Len(t, u.Results(), 1)
}

func TestPump_Coalesces(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	batches := make(chan []Signal, 4)

	p := NewPump(func(sigs []Signal) {
		batches <- sigs
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	p.Notify(SignalTests)

	var first []Signal
	select {
	case first = <-batches:
	case <-time.After(5 * time.Second):
		t.Fatal("no first batch")
	}

	// The consumer is blocked; these merge into one batch.
	p.Notify(SignalResults)
	p.Notify(SignalTests)
	p.Notify(SignalResults)
	close(release)

	var second []Signal
	select {
	case second = <-batches:
	case <-time.After(5 * time.Second):
		t.Fatal("no second batch")
	}

	cancel()
	<-done

	assert.Equal(t, []Signal{SignalTests}, first)
	assert.Equal(t, []Signal{SignalResults, SignalTests}, second)
}

func TestSignalQueue_Reentrant(t *testing.T) {
	t.Parallel()

	var (
		q   signalQueue
		got []Signal
	)

	var deliver func(Signal)
	deliver = func(sig Signal) {
		got = append(got, sig)

		if sig == SignalTests {
			q.raise(SignalSelected, deliver)
			q.raise(SignalDescription, deliver)
			got = append(got, "listener returned")
		}
	}

	q.raise(SignalTests, deliver)
	q.raise(SignalResults, deliver)

	assert.Equal(t, []Signal{
		SignalTests, "listener returned", SignalSelected, SignalDescription, SignalResults,
	}, got)
}
