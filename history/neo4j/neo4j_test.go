//nolint:testpackage
package neo4j

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/rlch/spar"
	"github.com/rlch/spar/history"
	"github.com/rlch/spar/model"
)

func TestDecodeRun(t *testing.T) {
	started := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	row := map[string]any{
		"id":       "r1",
		"unit":     "math.suite.yaml",
		"engine":   "yamlsuite",
		"err":      "",
		"started":  started.UnixNano(),
		"finished": started.Add(time.Second).UnixNano(),
		"tests": []any{
			map[string]any{"name": "adds", "status": "Success", "detail": ""},
			map[string]any{"name": "divides", "status": "Failure", "detail": "expected 2"},
		},
	}

	got, err := decodeRun(row)
	if err != nil {
		t.Fatal(err)
	}

	want := history.Run{
		ID:       "r1",
		Unit:     "math.suite.yaml",
		Engine:   "yamlsuite",
		Started:  started,
		Finished: started.Add(time.Second),
		Tests: []history.TestOutcome{
			{Name: "adds", Status: model.StatusSuccess},
			{Name: "divides", Status: model.StatusFailure, Detail: "expected 2"},
		},
	}

	equalTimes := cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

	if diff := cmp.Diff(want, got, equalTimes); diff != "" {
		t.Errorf("decodeRun() mismatch (-want +got):\n%s", diff)
	}

	row["tests"] = []any{map[string]any{"name": "x", "status": "Exploded"}}

	if _, err := decodeRun(row); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestSaveParams(t *testing.T) {
	run := history.Run{
		ID:    "r1",
		Tests: []history.TestOutcome{{Name: "a", Status: model.StatusIgnored, Detail: "Ignored:\nlater"}},
	}

	params := saveParams(run)

	tests, ok := params["tests"].([]any)
	if !ok || len(tests) != 1 {
		t.Fatalf("tests param = %#v", params["tests"])
	}

	want := map[string]any{"seq": int64(0), "name": "a", "status": "Ignored", "detail": "Ignored:\nlater"}
	if diff := cmp.Diff(want, tests[0]); diff != "" {
		t.Errorf("test param mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_Registration(t *testing.T) {
	found := false

	for _, name := range history.Registered() {
		if name == spar.HistoryNeo4j {
			found = true

			break
		}
	}

	if !found {
		t.Error("neo4j store not registered")
	}
}

func TestStore_SaveList(t *testing.T) {
	store := setupIntegrationTest(t)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	unit := "integration-" + uuid.NewString()
	started := time.Now().Truncate(time.Millisecond)

	run := history.Run{
		ID:       uuid.NewString(),
		Unit:     unit,
		Engine:   spar.EngineYAMLSuite,
		Started:  started,
		Finished: started.Add(time.Second),
		Tests: []history.TestOutcome{
			{Name: "first", Status: model.StatusSuccess},
			{Name: "second", Status: model.StatusFailure, Detail: "boom"},
		},
	}

	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	runs, err := store.List(ctx, unit, 10)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	if len(runs) != 1 {
		t.Fatalf("List() returned %d runs, want 1", len(runs))
	}

	equalTimes := cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

	if diff := cmp.Diff(run, runs[0], equalTimes); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func setupIntegrationTest(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("SPAR_NEO4J_URI")
	if uri == "" {
		t.Skip("SPAR_NEO4J_URI not set, skipping integration test")
	}

	cfg := &spar.Neo4jConfig{
		URI:      uri,
		Username: os.Getenv("SPAR_NEO4J_USER"),
		Password: os.Getenv("SPAR_NEO4J_PASS"),
	}

	store, err := New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	return store
}
