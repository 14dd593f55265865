package lint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// RuleViolation is one structural finding. Severity is empty for blocking
// findings and "warning" for informational ones (LNC-012).
type RuleViolation struct {
	RuleID   string `json:"rule_id"`
	Message  string `json:"message"`
	Line     int    `json:"line_hint"`
	Severity string `json:"severity,omitempty"`
}

func (v RuleViolation) IsWarning() bool { return v.Severity == "warning" }

// Result aggregates one lint pass. Warnings never flip Passed.
type Result struct {
	Passed     bool            `json:"passed"`
	Violations []RuleViolation `json:"violations"`
}

// Blocking returns the non-warning violations.
func (r Result) Blocking() []RuleViolation {
	var out []RuleViolation
	for _, v := range r.Violations {
		if !v.IsWarning() {
			out = append(out, v)
		}
	}
	return out
}

// RuleIDs returns the distinct rule ids present, warnings included.
func (r Result) RuleIDs() map[string]bool {
	out := map[string]bool{}
	for _, v := range r.Violations {
		out[v.RuleID] = true
	}
	return out
}

type ruleFunc func(code string, mode Mode) []RuleViolation

var rules = []ruleFunc{
	checkHardcodedIndex,     // LNC-001 a/b/c
	checkUnusedVariables,    // LNC-002
	checkValueAnchoring,     // LNC-003 (mode-conditional)
	checkFileScopeOutputs,   // LNC-004
	checkFeeArithmetic,      // LNC-005
	checkWrongSelfRef,       // LNC-006
	checkDeprecated,         // LNC-007
	checkTimelockStandalone, // LNC-010
	checkDivisionGuard,      // LNC-011
	checkFrozenState,        // LNC-012 (warning only)
	checkSelfAnchor,         // LNC-008 (mode matrix)
	checkMintAuthority,      // LNC-013 (token/minting only)
	checkTokenPair,          // LNC-014
	checkForbiddenSyntax,    // LNC-009
}

// Lint runs every structural rule against source. One panicking rule is
// logged and skipped so the batch always completes.
func Lint(code string, mode Mode) Result {
	if strings.TrimSpace(code) == "" {
		return Result{Passed: false, Violations: []RuleViolation{
			{RuleID: "LNC-000", Message: "Empty code", Line: 0},
		}}
	}

	var all []RuleViolation
	for _, rule := range rules {
		all = append(all, runRule(rule, code, mode)...)
	}

	passed := true
	for _, v := range all {
		if !v.IsWarning() {
			passed = false
		}
		logger.Debug("[lint] %s L%d: %s", v.RuleID, v.Line, v.Message)
	}
	return Result{Passed: passed, Violations: all}
}

func runRule(rule ruleFunc, code string, mode Mode) (out []RuleViolation) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("lint rule panicked, skipping: %v", r)
			out = nil
		}
	}()
	return rule(code, mode)
}

// FormatForPrompt renders violations as compact one-liners for a retry
// prompt.
func FormatForPrompt(violations []RuleViolation) string {
	if len(violations) == 0 {
		return ""
	}
	lines := []string{"DSL LINT VIOLATIONS (fix these — do NOT add new logic):"}
	for _, v := range violations {
		lines = append(lines, fmt.Sprintf("- %s L%d: %s", v.RuleID, v.Line, v.Message))
	}
	return strings.Join(lines, "\n")
}

// numberedLines yields 1-indexed lines.
func numberedLines(code string) []struct {
	No   int
	Text string
} {
	raw := strings.Split(code, "\n")
	out := make([]struct {
		No   int
		Text string
	}, len(raw))
	for i, ln := range raw {
		out[i].No = i + 1
		out[i].Text = ln
	}
	return out
}

type functionBody struct {
	Name  string
	Body  string
	Start int
}

var lintFunctionRe = regexp.MustCompile(`function\s+(\w+)\s*\([^)]*\)\s*\{`)

// functionBodies isolates each function block with a brace-depth scan.
func functionBodies(code string) []functionBody {
	var out []functionBody
	for _, loc := range lintFunctionRe.FindAllStringSubmatchIndex(code, -1) {
		start := loc[1] // position after '{'
		depth := 1
		i := start
		for i < len(code) && depth > 0 {
			switch code[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
			i++
		}
		out = append(out, functionBody{
			Name:  code[loc[2]:loc[3]],
			Body:  code[start : i-1],
			Start: strings.Count(code[:loc[0]], "\n") + 1,
		})
	}
	return out
}

func stripLineComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}
