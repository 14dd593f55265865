package repair

import (
	"context"
	"fmt"
	"regexp"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/ai"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
	"github.com/CovenantBits/Covforge/src/internal/cleaner"
	"github.com/CovenantBits/Covforge/src/internal/knowledge"
	"github.com/CovenantBits/Covforge/src/internal/lint"
	"github.com/CovenantBits/Covforge/src/internal/logger"
	"github.com/CovenantBits/Covforge/src/internal/tollgate"
	"github.com/CovenantBits/Covforge/src/strategy/prompts"
)

const repairSystemPrompt = `You are an expert CashScript security engineer.
Your task is to surgically fix a single vulnerability in a CashScript contract.

IMPORTANT RULES & CONSTRAINTS:
1. Fix ONLY the assigned vulnerability. Do NOT refactor or change other parts of the contract.
2. You MUST NOT remove any require() statements.
3. You MUST NOT remove value equality checks.
4. You MUST NOT remove tokenCategory or tokenAmount checks.
5. You MUST NOT remove tx.outputs.length guards.
6. You MUST NOT remove this.activeBytecode comparisons.
7. You MUST NOT change constructor parameters.
8. You MUST NOT change function signatures or names.

Output ONLY the corrected CashScript code. NO markdown formatting, NO explanations, NO backticks.
Start exactly with ` + "`pragma cashscript`" + `.`

// RepairRequest targets one audit issue in one contract.
type RepairRequest struct {
	OriginalCode string
	Issue        internal.AuditIssue
	Mode         lint.Mode
}

// RepairResult always carries deployable code: the corrected contract on
// success, the untouched original on failure.
type RepairResult struct {
	CorrectedCode string
	Success       bool
	Attempts      int
	Rejections    []string
}

// Agent runs tiered oracle repairs behind deterministic gates. A candidate
// that weakens the contract is rejected no matter what the oracle claims.
type Agent struct {
	fast      ai.Oracle
	escalated ai.Oracle
	gate      *tollgate.Gate
	kb        *knowledge.Base
	template  string
}

func NewAgent(fast, escalated ai.Oracle, gate *tollgate.Gate, kb *knowledge.Base) (*Agent, error) {
	tmpl, err := prompts.LoadTemplate("repair")
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	return &Agent{fast: fast, escalated: escalated, gate: gate, kb: kb, template: tmpl}, nil
}

var requireRe = regexp.MustCompile(`\brequire\s*\(`)

func countRequires(code string) int {
	return len(requireRe.FindAllString(code, -1))
}

// Repair tries the fast oracle twice, then the escalated oracle once.
// Every candidate must pass three gates before acceptance: guard count
// must not decrease, no new lint rule ids may appear, and the targeted
// issue's rule id must be gone.
func (a *Agent) Repair(ctx context.Context, req RepairRequest) RepairResult {
	result := RepairResult{CorrectedCode: req.OriginalCode}

	mode := req.Mode
	if mode == lint.ModeUnknown {
		mode = lint.InferMode(req.OriginalCode)
	}

	originalGuards := astparser.Parse(req.OriginalCode).GuardCount()
	if fallback := countRequires(req.OriginalCode); fallback > originalGuards {
		originalGuards = fallback
	}
	originalLintIDs := lint.Lint(req.OriginalCode, mode).RuleIDs()

	tiers := []struct {
		label     string
		oracle    ai.Oracle
		escalated bool
	}{
		{"fast", a.fast, false},
		{"fast retry", a.fast, false},
		{"escalated", a.escalated, true},
	}

	for _, tier := range tiers {
		if ctx.Err() != nil {
			return result
		}
		result.Attempts++
		logger.Info("Repair attempt %d (%s) for %s", result.Attempts, tier.label, req.Issue.RuleID)

		candidate, err := a.attempt(ctx, req, tier.escalated)
		if err != nil {
			logger.Warn("Repair attempt failed: %v", err)
			continue
		}

		if reason := a.reject(req, candidate, mode, originalGuards, originalLintIDs); reason != "" {
			logger.Warn("Repair attempt rejected: %s", reason)
			result.Rejections = append(result.Rejections, reason)
			continue
		}

		logger.Info("Repair succeeded on attempt %d", result.Attempts)
		result.CorrectedCode = candidate
		result.Success = true
		return result
	}

	return result
}

func (a *Agent) attempt(ctx context.Context, req RepairRequest, escalated bool) (string, error) {
	ruleDoc := ""
	if doc, ok := a.kb.RuleDoc(req.Issue.RuleID); ok {
		ruleDoc = doc.Body
	}

	prompt := prompts.BuildPrompt(a.template, prompts.PromptVariables{
		Code:             req.OriginalCode,
		IssueTitle:       req.Issue.Title,
		IssueDescription: req.Issue.Description,
		IssueRuleID:      req.Issue.RuleID,
		RuleDoc:          ruleDoc,
		Escalated:        escalated,
	})

	oracle := a.fast
	if escalated {
		oracle = a.escalated
	}
	response, err := oracle.Complete(ctx, ai.Request{
		Prompt:       prompt,
		SystemPrompt: repairSystemPrompt,
	})
	if err != nil {
		return "", err
	}

	candidate := cleaner.CleanCode(response)
	if candidate == "" {
		return "", fmt.Errorf("oracle returned empty code")
	}
	return candidate, nil
}

// reject returns a non-empty reason when a candidate fails any gate.
func (a *Agent) reject(req RepairRequest, candidate string, mode lint.Mode, originalGuards int, originalLintIDs map[string]bool) string {
	candidateGuards := astparser.Parse(candidate).GuardCount()
	if fallback := countRequires(candidate); fallback > candidateGuards {
		candidateGuards = fallback
	}
	if candidateGuards < originalGuards {
		return fmt.Sprintf("dropped require() guards (%d -> %d)", originalGuards, candidateGuards)
	}

	candidateLint := lint.Lint(candidate, mode)
	for id := range candidateLint.RuleIDs() {
		if !originalLintIDs[id] {
			return fmt.Sprintf("introduced new lint violation %s", id)
		}
	}

	if !a.issueResolved(req.Issue.RuleID, candidate, candidateLint) {
		return fmt.Sprintf("issue %s was not resolved", req.Issue.RuleID)
	}

	return ""
}

// issueResolved checks that the targeted rule id no longer fires in either
// the detector registry or the lint layer.
func (a *Agent) issueResolved(ruleID, candidate string, candidateLint lint.Result) bool {
	if candidateLint.RuleIDs()[ruleID] {
		return false
	}
	for _, v := range a.gate.Validate(candidate).Violations {
		if v.Rule == ruleID {
			return false
		}
	}
	return true
}
