package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/spar"
	"github.com/rlch/spar/enginetest"
	"github.com/rlch/spar/history"
	"github.com/rlch/spar/model"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	store, err := history.Open(spar.HistoryMemory, nil)
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	_, err = history.Open("nope", nil)
	assert.ErrorIs(t, err, history.ErrUnknownStore)
	assert.Contains(t, history.Registered(), spar.HistoryMemory)
}

func TestMemory_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := history.NewMemory()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, unit := range []string{"a", "b", "a"} {
		err := m.Save(ctx, history.Run{
			ID:      string(rune('x' + i)),
			Unit:    unit,
			Started: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	assert.Error(t, m.Save(ctx, history.Run{ID: "x"}), "duplicate id")

	all, err := m.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, ids(all))

	onlyA, err := m.List(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, ids(onlyA))
}

func ids(runs []history.Run) []string {
	var out []string
	for _, r := range runs {
		out = append(out, r.ID)
	}

	return out
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	store := history.NewMemory()
	engine := enginetest.New("ok", "bad").
		WithOutcome("bad", spar.GeneralFailure{Message: "nope"})

	u := model.NewUnit("unit.suite.yaml", engine, model.WithHandler(history.NewRecorder(store)))
	t.Cleanup(u.Close)

	for range 2 {
		done, ok := u.Run(context.Background())
		require.True(t, ok)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("run did not finish")
		}
	}

	runs, err := store.List(context.Background(), "unit.suite.yaml", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	run := runs[0]
	assert.NotEmpty(t, run.ID)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)
	assert.Equal(t, enginetest.Name, run.Engine)
	assert.Empty(t, run.Err)
	assert.Equal(t, []history.TestOutcome{
		{Name: "ok", Status: model.StatusSuccess},
		{Name: "bad", Status: model.StatusFailure, Detail: "General Failure\nnope"},
	}, run.Tests)
	assert.Equal(t, model.Counts{Total: 2, Success: 1, Failure: 1}, run.Counts())
	assert.False(t, run.Finished.Before(run.Started))
}
