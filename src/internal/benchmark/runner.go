package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CovenantBits/Covforge/src/internal/lint"
	"github.com/CovenantBits/Covforge/src/internal/tollgate"
	"github.com/CovenantBits/Covforge/src/internal/ui"
)

// TestCase is one labeled contract in the dataset.
type TestCase struct {
	Name            string   `json:"name"`
	Code            string   `json:"code"`
	Mode            string   `json:"mode"`
	ExpectedRuleIDs []string `json:"expected_rule_ids"`
}

// TestResult records which expected rules fired for one case.
type TestResult struct {
	TestCase   TestCase
	Hits       []string
	Misses     []string
	Unexpected []string
	Duration   time.Duration
}

func (r TestResult) Passed() bool {
	return len(r.Misses) == 0 && len(r.Unexpected) == 0
}

type Options struct {
	DatasetPath string
	Concurrency int
}

// Run replays the labeled dataset through the toll gate and linter and
// prints a per-rule hit table. Every case runs the full deterministic
// pipeline; no oracle is involved.
func Run(ctx context.Context, opts Options) error {
	datasetPath := opts.DatasetPath
	if datasetPath == "" {
		datasetPath = "benchmark/dataset.json"
	}
	data, err := os.ReadFile(datasetPath)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}

	var testCases []TestCase
	if err := json.Unmarshal(data, &testCases); err != nil {
		return fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(testCases) == 0 {
		return fmt.Errorf("dataset %s is empty", datasetPath)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	fmt.Printf("📋 Loaded %d test cases. Running with concurrency: %d\n\n", len(testCases), concurrency)

	gate := tollgate.New()
	bar := ui.NewProgressBar(len(testCases), "benchmark")

	var mu sync.Mutex
	results := make([]TestResult, 0, len(testCases))

	startTime := time.Now()
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, tc := range testCases {
		tc := tc
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result := evaluate(gate, tc)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()

			if !result.Passed() {
				bar.AddFailure()
				bar.PrintMsg(ui.FormatFailureMsg(tc.Name, failureReasons(result)))
			}
			bar.Increment()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	bar.Finish()

	printSummary(results, time.Since(startTime))
	return nil
}

func evaluate(gate *tollgate.Gate, tc TestCase) TestResult {
	start := time.Now()

	fired := map[string]bool{}
	for _, violation := range gate.Validate(tc.Code).Violations {
		fired[violation.Rule] = true
	}
	mode := lint.ParseMode(tc.Mode)
	if mode == lint.ModeUnknown {
		mode = lint.InferMode(tc.Code)
	}
	for id := range lint.Lint(tc.Code, mode).RuleIDs() {
		fired[id] = true
	}

	expected := map[string]bool{}
	for _, id := range tc.ExpectedRuleIDs {
		expected[id] = true
	}

	result := TestResult{TestCase: tc, Duration: time.Since(start)}
	for id := range expected {
		if fired[id] {
			result.Hits = append(result.Hits, id)
		} else {
			result.Misses = append(result.Misses, id)
		}
	}
	for id := range fired {
		if !expected[id] {
			result.Unexpected = append(result.Unexpected, id)
		}
	}
	sort.Strings(result.Hits)
	sort.Strings(result.Misses)
	sort.Strings(result.Unexpected)
	return result
}

func failureReasons(result TestResult) []string {
	var reasons []string
	if len(result.Misses) > 0 {
		reasons = append(reasons, "missed "+strings.Join(result.Misses, "/"))
	}
	if len(result.Unexpected) > 0 {
		reasons = append(reasons, "unexpected "+strings.Join(result.Unexpected, "/"))
	}
	return reasons
}

type ruleStats struct {
	hits   int
	misses int
	extras int
}

func printSummary(results []TestResult, duration time.Duration) {
	perRule := map[string]*ruleStats{}
	stat := func(id string) *ruleStats {
		if perRule[id] == nil {
			perRule[id] = &ruleStats{}
		}
		return perRule[id]
	}

	passed := 0
	for _, result := range results {
		if result.Passed() {
			passed++
		}
		for _, id := range result.Hits {
			stat(id).hits++
		}
		for _, id := range result.Misses {
			stat(id).misses++
		}
		for _, id := range result.Unexpected {
			stat(id).extras++
		}
	}

	ids := make([]string, 0, len(perRule))
	for id := range perRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("\nRule hit table:")
	fmt.Printf("%-40s %6s %6s %6s\n", "RULE", "HIT", "MISS", "EXTRA")
	for _, id := range ids {
		s := perRule[id]
		fmt.Printf("%-40s %6d %6d %6d\n", id, s.hits, s.misses, s.extras)
	}

	ui.PrintStats(len(results), passed, len(results)-passed, duration)
}
