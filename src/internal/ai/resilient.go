package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// Resilient walks an ordered provider chain until one completion succeeds.
// The pipeline above only ever sees the final error, so provider fallback
// never inflates the orchestrator's own retry bounds.
type Resilient struct {
	task   Task
	chain  []Oracle
	labels []string
}

// NewResilient wires a chain of oracles for one task. Entries that fail to
// construct (missing key, bad URL) are skipped with a warning; an empty
// surviving chain is an error.
func NewResilient(task Task, configs []TaskConfig, settings func(provider string) ProviderSettings) (*Resilient, error) {
	r := &Resilient{task: task}
	for _, tc := range configs {
		o, err := NewOracle(tc, settings(tc.Provider))
		if err != nil {
			logger.Warn("Task %s: skipping provider %s: %v", task, tc.Provider, err)
			continue
		}
		r.chain = append(r.chain, o)
		r.labels = append(r.labels, fmt.Sprintf("%s/%s", tc.Provider, tc.Model))
	}
	if len(r.chain) == 0 {
		return nil, fmt.Errorf("task %s: no usable providers in chain", task)
	}
	return r, nil
}

func (r *Resilient) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for i, o := range r.chain {
		content, err := o.Complete(ctx, req)
		if err == nil {
			return content, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
		if i < len(r.chain)-1 {
			logger.Warn("Task %s: %s failed, falling back to %s: %v", r.task, r.labels[i], r.labels[i+1], err)
		}
	}
	return "", fmt.Errorf("task %s: all providers failed: %w", r.task, lastErr)
}

func (r *Resilient) Name() string {
	return fmt.Sprintf("%s [%s]", r.task, strings.Join(r.labels, " -> "))
}

func (r *Resilient) Close() error {
	var first error
	for _, o := range r.chain {
		if err := o.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
