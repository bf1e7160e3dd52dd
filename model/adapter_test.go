package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rlch/spar"
	"github.com/rlch/spar/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		outcome spar.Outcome
		status  model.TestStatus
		detail  string
	}{
		{"success", spar.Success{}, model.StatusSuccess, ""},
		{"exception", spar.ExceptionFailure{Description: "nil deref"}, model.StatusFailure, "nil deref"},
		{"expectation", spar.ExpectationFailure{Message: "want 1 got 2"}, model.StatusFailure, "want 1 got 2"},
		{"general", spar.GeneralFailure{Message: "boom"}, model.StatusFailure, "General Failure\nboom"},
		{"ignored", spar.Ignored{Message: "flaky"}, model.StatusIgnored, "Ignored:\nflaky"},
		{"standard not met", spar.StandardNotMet{}, model.StatusFailure, "Standard not met, check the comparison"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, detail := model.Classify(tt.outcome)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.detail, detail)
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	s, err := model.ParseStatus("failure")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailure, s)

	_, err = model.ParseStatus("broken")
	assert.ErrorIs(t, err, model.ErrInvalidStatus)

	text, err := model.StatusIgnored.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "Ignored", string(text))
	assert.True(t, model.StatusSuccess.IsTerminal())
	assert.False(t, model.StatusRunning.IsTerminal())
}
