package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedOracle struct {
	name     string
	response string
	err      error
	closeErr error
	calls    int
}

func (s *scriptedOracle) Complete(_ context.Context, _ Request) (string, error) {
	s.calls++
	return s.response, s.err
}

func (s *scriptedOracle) Name() string { return s.name }
func (s *scriptedOracle) Close() error { return s.closeErr }

func TestResilientFirstProviderWins(t *testing.T) {
	primary := &scriptedOracle{response: "ok"}
	backup := &scriptedOracle{response: "backup"}
	r := &Resilient{task: TaskGenerate, chain: []Oracle{primary, backup}, labels: []string{"a/x", "b/y"}}

	out, err := r.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Zero(t, backup.calls, "backup is never consulted on success")
}

func TestResilientFallsBack(t *testing.T) {
	primary := &scriptedOracle{err: errors.New("rate limited")}
	backup := &scriptedOracle{response: "backup"}
	r := &Resilient{task: TaskGenerate, chain: []Oracle{primary, backup}, labels: []string{"a/x", "b/y"}}

	out, err := r.Complete(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "backup", out)
	assert.Equal(t, 1, primary.calls)
}

func TestResilientAllProvidersFail(t *testing.T) {
	r := &Resilient{
		task:   TaskIntent,
		chain:  []Oracle{&scriptedOracle{err: errors.New("down")}, &scriptedOracle{err: errors.New("also down")}},
		labels: []string{"a/x", "b/y"},
	}

	_, err := r.Complete(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "also down", "the final provider's error surfaces")
}

func TestResilientStopsOnContextCancellation(t *testing.T) {
	backup := &scriptedOracle{response: "backup"}
	r := &Resilient{
		task:   TaskGenerate,
		chain:  []Oracle{&scriptedOracle{err: context.Canceled}, backup},
		labels: []string{"a/x", "b/y"},
	}

	_, err := r.Complete(context.Background(), Request{Prompt: "p"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, backup.calls, "cancellation is not a provider failure")
}

func TestResilientName(t *testing.T) {
	r := &Resilient{task: TaskGenerate, labels: []string{"openrouter/big", "groq/fast"}}
	assert.Equal(t, "generate [openrouter/big -> groq/fast]", r.Name())
}

func TestResilientCloseReturnsFirstError(t *testing.T) {
	closeErr := errors.New("close failed")
	r := &Resilient{chain: []Oracle{
		&scriptedOracle{},
		&scriptedOracle{closeErr: closeErr},
		&scriptedOracle{closeErr: errors.New("second close failure")},
	}}
	assert.Equal(t, closeErr, r.Close())
}

func TestNewResilientSkipsBrokenProviders(t *testing.T) {
	settings := func(string) ProviderSettings { return ProviderSettings{} }

	_, err := NewResilient(TaskGenerate, []TaskConfig{
		{Provider: "carrier-pigeon", Model: "m"},
	}, settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable providers")

	r, err := NewResilient(TaskGenerate, []TaskConfig{
		{Provider: "carrier-pigeon", Model: "m"},
		{Provider: "ollama", Model: "local-model"},
	}, settings)
	require.NoError(t, err)
	assert.Contains(t, r.Name(), "ollama/local-model")
}
