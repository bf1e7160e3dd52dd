package gotest

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/spar"
)

func TestParseTestList(t *testing.T) {
	t.Parallel()

	output := []byte("TestA\nTestB\n\nok  \texample.com/pkg\t0.335s\n? example.com/other [no test files]\nok\n")

	got := ParseTestList(output)

	if diff := cmp.Diff([]string{"TestA", "TestB"}, got); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPattern(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "^(TestA|TestB)$", runPattern([]string{"TestA", "TestB"}))
	assert.Equal(t, `^(Test\.Dot)$`, runPattern([]string{"Test.Dot"}))
}

func TestTranslator(t *testing.T) {
	t.Parallel()

	f, err := os.Open("testdata/run.jsonl")
	require.NoError(t, err)

	defer f.Close()

	var events []spar.Event

	tr := newTranslator(func(ev spar.Event) { events = append(events, ev) })

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ev, err := ParseTestEvent(scanner.Bytes())
		if err != nil {
			continue
		}

		tr.handle(ev)
	}

	require.NoError(t, scanner.Err())

	tr.finish()

	assert.True(t, tr.sawTest)
	assert.True(t, tr.pkgFailed)

	type step struct {
		Kind spar.EventKind
		Name string
		Out  spar.OutcomeKind
	}

	var got []step
	for _, ev := range events {
		s := step{Kind: ev.Kind, Name: ev.Name}
		if ev.Outcome != nil {
			s.Out = ev.Outcome.Kind()
		}

		got = append(got, s)
	}

	want := []step{
		{spar.EventRunning, "TestPasses", ""},
		{spar.EventFinished, "TestPasses", spar.KindSuccess},
		{spar.EventRunning, "TestFails", ""},
		{spar.EventFinished, "TestFails", spar.KindGeneral},
		{spar.EventRunning, "TestSkips", ""},
		{spar.EventFinished, "TestSkips", spar.KindIgnored},
		{spar.EventRunning, "TestCrashes", ""},
		{spar.EventFinished, "TestCrashes", spar.KindGeneral},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	assert.Contains(t, spar.Message(events[3].Outcome), "about to fail", "subtest output folds into the parent")
	assert.Equal(t, "    sample_test.go:16: not today\n", spar.Message(events[5].Outcome))
	assert.Contains(t, spar.Message(events[7].Outcome), "panic: boom")
}

func TestArgs(t *testing.T) {
	t.Parallel()

	e := New(WithTags("integration", "slow"), WithTimeout(time.Minute), WithFlags("-race"))

	assert.Equal(t,
		[]string{"test", "-tags", "integration,slow", "-timeout", "1m0s", "-race", "-list", "^Test"},
		e.args("-list", "^Test"))
}

func TestClaims(t *testing.T) {
	t.Parallel()

	assert.True(t, Claims("testdata/sample"))
	assert.False(t, Claims("testdata"))
	assert.False(t, Claims("testdata/run.jsonl"))
}

func TestEngine_Sample(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go toolchain")
	}

	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go not on PATH")
	}

	dir, err := filepath.Abs("testdata/sample")
	require.NoError(t, err)

	e := New()
	ctx := context.Background()

	var found []string

	err = e.FindTests(ctx, dir, func(ev spar.Event) { found = append(found, ev.Name) })
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"TestPasses", "TestFails", "TestSkips", "TestSubtests"}, found)

	outcomes := make(map[string]spar.Outcome)

	err = e.RunTests(ctx, dir, func(ev spar.Event) {
		if ev.Kind == spar.EventFinished {
			outcomes[ev.Name] = ev.Outcome
		}
	})
	require.NoError(t, err)

	assert.Equal(t, spar.Success{}, outcomes["TestPasses"])
	assert.Equal(t, spar.Success{}, outcomes["TestSubtests"])
	assert.Equal(t, spar.KindGeneral, outcomes["TestFails"].Kind())
	assert.Contains(t, spar.Message(outcomes["TestFails"]), "about to fail")
	assert.Equal(t, spar.KindIgnored, outcomes["TestSkips"].Kind())
	assert.Contains(t, spar.Message(outcomes["TestSkips"]), "not today")
}
