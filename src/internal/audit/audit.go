package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/ai"
	"github.com/CovenantBits/Covforge/src/internal/ai/parser"
	"github.com/CovenantBits/Covforge/src/internal/compiler"
	"github.com/CovenantBits/Covforge/src/internal/lint"
	"github.com/CovenantBits/Covforge/src/internal/logger"
	"github.com/CovenantBits/Covforge/src/internal/scoring"
	"github.com/CovenantBits/Covforge/src/internal/tollgate"
	"github.com/CovenantBits/Covforge/src/strategy/prompts"
)

// compileErrorRules map structured compiler error types onto audit rule ids
// so duplicate compile failures dedupe like any other issue.
var compileErrorRules = map[compiler.ErrorType]string{
	compiler.ParseError:            "compile_parse_error",
	compiler.TypeMismatchError:     "compile_type_mismatch",
	compiler.UnusedVariableError:   "compile_unused_variable",
	compiler.ExtraneousInputError:  "compile_extraneous_input",
	compiler.TimeoutError:          "compile_timeout",
	compiler.CompilerNotFoundError: "compile_environment_error",
	compiler.InternalError:         "compile_internal_error",
	compiler.UnknownError:          "compile_unknown_error",
}

const classifySystemPrompt = `You are a CashScript Security Auditor.
Your job is to analyze the logic of the contract and find semantic/game-theoretic bugs (e.g., deadlocks, unspendable branches, missing timeouts, broken invariants).
Do NOT complain about syntax, formatting, or missing PRAGMA statements.
Focus ONLY on the logic flow and constraints.

Return ONLY a JSON object exactly matching this schema:
{
  "semantic_category": "<one of: none, minor_inefficiency, logic_gap, major_protocol_flaw, funds_unspendable>",
  "business_logic_score": <int 0-10, 10 means the business logic perfectly matches the intent>,
  "semantic_issues": [
    {
      "title": "<Short title of logical flaw>",
      "description": "<Detailed explanation of why it is broken>",
      "severity": "<CRITICAL or HIGH or MEDIUM>"
    }
  ]
}`

// AuditRequest audits an arbitrary contract, generated or hand-written.
type AuditRequest struct {
	Code   string
	Intent string
	Mode   lint.Mode
}

// Agent runs the full validation stack against existing code:
// compile, lint, toll gate, semantic classification, scoring.
type Agent struct {
	compiler compiler.Compiler
	gate     *tollgate.Gate
	classify ai.Oracle
	scorer   *scoring.Engine
	template string
}

func NewAgent(comp compiler.Compiler, gate *tollgate.Gate, classify ai.Oracle, scorer *scoring.Engine) (*Agent, error) {
	tmpl, err := prompts.LoadTemplate("audit_classify")
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return &Agent{
		compiler: comp,
		gate:     gate,
		classify: classify,
		scorer:   scorer,
		template: tmpl,
	}, nil
}

func (a *Agent) Audit(ctx context.Context, req AuditRequest) (*internal.AuditReport, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("audit: code is required")
	}

	var issues []internal.AuditIssue

	compileResult := a.compiler.Compile(ctx, req.Code)
	if !compileResult.Success {
		cerr := compileResult.Err
		ruleID, ok := compileErrorRules[cerr.Type]
		if !ok {
			ruleID = "compile_unknown_error"
		}
		recommendation := cerr.Hint
		if recommendation == "" {
			recommendation = "Review syntax and compiler output."
		}
		issues = append(issues, internal.AuditIssue{
			Title:          fmt.Sprintf("Compilation Failed: %s", cerr.Type),
			Severity:       internal.SeverityCritical,
			Line:           cerr.Line,
			Description:    fmt.Sprintf("The contract failed to compile: %s", cerr.Raw),
			Recommendation: recommendation,
			RuleID:         ruleID,
			CanFix:         true,
		})
	}

	mode := req.Mode
	if mode == lint.ModeUnknown {
		mode = lint.InferMode(req.Code)
	}
	lintResult := lint.Lint(req.Code, mode)
	for _, v := range lintResult.Violations {
		severity := internal.SeverityHigh
		if v.IsWarning() {
			severity = internal.SeverityLow
		}
		issues = append(issues, internal.AuditIssue{
			Title:          fmt.Sprintf("DSL Structure Warning (%s)", v.RuleID),
			Severity:       severity,
			Line:           v.Line,
			Description:    v.Message,
			Recommendation: "Adhere to CashScript DSL conventions.",
			RuleID:         v.RuleID,
			CanFix:         !v.IsWarning(),
		})
	}

	tollGate := a.gate.Validate(req.Code)
	for _, v := range tollGate.Violations {
		description := v.Exploit
		if description == "" {
			description = v.Reason
		}
		issues = append(issues, internal.AuditIssue{
			Title:          fmt.Sprintf("Security Violation: %s", v.Rule),
			Severity:       v.Severity,
			Line:           v.Location.Line,
			Description:    description,
			Recommendation: prompts.DeriveFixHint(v.Rule),
			RuleID:         v.Rule,
			CanFix:         true,
		})
	}

	review := a.semanticReview(ctx, req)
	for _, issue := range review.Issues {
		issues = append(issues, internal.AuditIssue{
			Title:          fmt.Sprintf("Semantic Flaw: %s", issue.Title),
			Severity:       internal.ParseSeverity(issue.Severity),
			Description:    issue.Description,
			Recommendation: "Review the contract's business logic against the intended pattern.",
			RuleID:         "semantic_logic_flaw",
			CanFix:         true,
		})
	}

	report := a.scorer.Score(scoring.Input{
		Issues:             issues,
		CompileSuccess:     compileResult.Success,
		LintPassed:         lintResult.Passed,
		StructuralScore:    tollGate.StructuralScore,
		SemanticCategory:   review.Category,
		BusinessLogicScore: review.BusinessLogicScore,
	})
	report.Metadata = map[string]string{
		"mode":             mode.String(),
		"structural_score": fmt.Sprintf("%.2f", tollGate.StructuralScore),
	}
	return &report, nil
}

// semanticReview asks the classify oracle for a logic verdict. Oracle
// failure degrades to a conservative logic_gap rather than aborting the
// audit: the deterministic layers already produced a usable report.
func (a *Agent) semanticReview(ctx context.Context, req AuditRequest) *parser.SemanticReview {
	fallback := &parser.SemanticReview{Category: "logic_gap"}
	if a.classify == nil {
		return fallback
	}

	prompt := prompts.BuildPrompt(a.template, map[string]string{
		"Intent": req.Intent,
		"Code":   req.Code,
	})

	response, err := a.classify.Complete(ctx, ai.Request{
		Prompt:       prompt,
		SystemPrompt: classifySystemPrompt,
	})
	if err != nil {
		logger.Error("Semantic audit oracle failed: %v", err)
		return fallback
	}

	review, err := parser.ParseSemanticReview(response)
	if err != nil {
		logger.Error("Semantic audit response unparseable: %v", err)
		return fallback
	}
	logger.Info("Semantic audit completed: category=%s business=%d issues=%d",
		review.Category, review.BusinessLogicScore, len(review.Issues))
	return review
}
