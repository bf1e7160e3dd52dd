package spar_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rlch/spar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopEngine struct{ name string }

func (e nopEngine) Name() string { return e.name }

func (nopEngine) FindTests(context.Context, string, spar.Sink) error { return nil }

func (nopEngine) RunTests(context.Context, string, spar.Sink) error { return nil }

func TestEngineRegistry(t *testing.T) {
	spar.RegisterEngine("zz-test-nop", func(spar.EngineConfig) (spar.Engine, error) {
		return nopEngine{name: "zz-test-nop"}, nil
	}, func(id string) bool {
		return strings.HasSuffix(id, ".nop")
	})

	e, err := spar.NewEngine("zz-test-nop", spar.EngineConfig{})
	require.NoError(t, err)
	assert.Equal(t, "zz-test-nop", e.Name())

	assert.Contains(t, spar.RegisteredEngines(), "zz-test-nop")

	name, err := spar.DetectEngine("suites/a.nop")
	require.NoError(t, err)
	assert.Equal(t, "zz-test-nop", name)

	_, err = spar.DetectEngine("suites/a.unknown-ext")
	assert.True(t, errors.Is(err, spar.ErrNoEngine))

	_, err = spar.NewEngine("does-not-exist", spar.EngineConfig{})
	assert.True(t, errors.Is(err, spar.ErrUnknownEngine))
}
