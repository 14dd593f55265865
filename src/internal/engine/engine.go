package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/ai"
	"github.com/CovenantBits/Covforge/src/internal/ai/parser"
	"github.com/CovenantBits/Covforge/src/internal/cleaner"
	"github.com/CovenantBits/Covforge/src/internal/compiler"
	"github.com/CovenantBits/Covforge/src/internal/guard"
	"github.com/CovenantBits/Covforge/src/internal/knowledge"
	"github.com/CovenantBits/Covforge/src/internal/lint"
	"github.com/CovenantBits/Covforge/src/internal/logger"
	"github.com/CovenantBits/Covforge/src/internal/sanity"
	"github.com/CovenantBits/Covforge/src/internal/session"
	"github.com/CovenantBits/Covforge/src/internal/tollgate"
	"github.com/CovenantBits/Covforge/src/strategy/prompts"
)

// Error codes surfaced to callers.
const (
	CodeMissingIntent       = "MISSING_INTENT"
	CodePhase1Failed        = "PHASE1_FAILED"
	CodeTollGateFailed      = "TOLL_GATE_FAILED"
	CodeGenerationExhausted = "generation_exhausted"
)

// GenerationError is the single failure shape for the guarded pipeline.
type GenerationError struct {
	Code              string
	Message           string
	LastCompilerError string
	Violations        []internal.Violation
}

func (e *GenerationError) Error() string {
	if e.LastCompilerError != "" {
		return fmt.Sprintf("%s: %s (last compiler error: %s)", e.Code, e.Message, e.LastCompilerError)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Bounds are the three nested retry budgets. Each counts attempts, so the
// loop body runs at most that many times.
type Bounds struct {
	GenRetries  int `yaml:"gen_retries"`
	LintRetries int `yaml:"lint_retries"`
	FixRetries  int `yaml:"fix_retries"`
}

func DefaultBounds() Bounds {
	return Bounds{GenRetries: 2, LintRetries: 2, FixRetries: 3}
}

// SynthesisRequest is one generation call.
type SynthesisRequest struct {
	Intent        string
	SecurityLevel string
	SessionID     string
}

// SynthesisResult is returned only after every gate has passed.
type SynthesisResult struct {
	ContractName string                  `json:"contract_name"`
	Code         string                  `json:"code"`
	IntentModel  internal.IntentModel    `json:"intent_model"`
	TollGate     internal.TollGateResult `json:"toll_gate"`
	SanityCheck  internal.SanityResult   `json:"sanity_check"`
	SessionID    string                  `json:"session_id"`
}

// Oracles maps each pipeline task to its provider chain.
type Oracles map[ai.Task]ai.Oracle

// Engine runs the guarded synthesis loop. All collaborators are injected;
// nothing here reaches for globals, which keeps the loop testable with
// stub oracles and compilers.
type Engine struct {
	oracles  Oracles
	compiler compiler.Compiler
	gate     *tollgate.Gate
	store    session.Store
	kb       *knowledge.Base
	bounds   Bounds

	templates map[string]string
}

func New(oracles Oracles, comp compiler.Compiler, gate *tollgate.Gate, store session.Store, kb *knowledge.Base, bounds Bounds) (*Engine, error) {
	if bounds.GenRetries <= 0 || bounds.LintRetries <= 0 || bounds.FixRetries <= 0 {
		bounds = DefaultBounds()
	}

	templates := map[string]string{}
	for _, name := range []string{"phase1_intent", "phase2_generate", "syntax_fix"} {
		tmpl, err := prompts.LoadTemplate(name)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		templates[name] = tmpl
	}

	return &Engine{
		oracles:   oracles,
		compiler:  comp,
		gate:      gate,
		store:     store,
		kb:        kb,
		bounds:    bounds,
		templates: templates,
	}, nil
}

const syntaxFixSystemPrompt = "You are a CashScript syntax fixer. " +
	"Fix ONLY the compiler error shown. " +
	"Do NOT change logic, intent, or structure. " +
	"Return ONLY the complete fixed .cash code. No markdown. No explanation."

// GenerateGuarded runs the full guarded pipeline: intent parse, then up to
// GenRetries drafts, each passing language guard, lint, compile-fix, toll
// gate and sanity check in order. Only toll-gate failures carry violation
// context into the next draft; every other failure clears it.
func (e *Engine) GenerateGuarded(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if strings.TrimSpace(req.Intent) == "" {
		return nil, &GenerationError{Code: CodeMissingIntent, Message: "intent is required"}
	}
	if req.SecurityLevel == "" {
		req.SecurityLevel = "high"
	}

	model, err := e.parseIntent(ctx, req)
	if err != nil {
		return nil, err
	}
	declaredMode := lint.ParseMode(model.ContractType)
	logger.Info("Intent parsed: type=%s features=%v mode=%s", model.ContractType, model.Features, declaredMode)

	var (
		priorViolations   []internal.Violation
		lastCompilerError string
	)

	for attempt := 0; attempt < e.bounds.GenRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info("--- Generation attempt %d/%d ---", attempt+1, e.bounds.GenRetries)

		draft, err := e.draft(ctx, req, model, declaredMode, priorViolations)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Draft failed: %v", err)
			priorViolations = nil
			continue
		}

		if reason, ok := guard.Check(draft); !ok {
			logger.Warn("Language guard failed: %s. Regenerating...", reason)
			priorViolations = nil
			continue
		}

		mode := declaredMode
		if mode == lint.ModeUnknown {
			mode = lint.InferMode(draft)
			logger.Debug("Mode inferred from draft: %s", mode)
		}

		draft, ok := e.lintLoop(ctx, draft, mode, model)
		if !ok {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			priorViolations = nil
			continue
		}

		draft, compileErr := e.compileLoop(ctx, draft)
		if compileErr != "" {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastCompilerError = compileErr
			logger.Warn("Compile loop exhausted. Retrying full generation...")
			priorViolations = nil
			continue
		}

		tollGate := e.gate.Validate(draft)
		if !tollGate.Passed {
			logger.Warn("Toll gate failed with %d violations. Retrying with violation feedback...", len(tollGate.Violations))
			priorViolations = tollGate.Violations
			continue
		}

		sanityResult := sanity.Check(draft, *model)
		if !sanityResult.Passed {
			logger.Warn("Sanity check failed: %v. Retrying full generation...", sanityResult.Failures)
			priorViolations = nil
			continue
		}

		return e.commit(req, model, draft, tollGate, sanityResult)
	}

	return nil, &GenerationError{
		Code:              CodeGenerationExhausted,
		Message:           "guarded pipeline failed to converge after multiple attempts",
		LastCompilerError: lastCompilerError,
		Violations:        priorViolations,
	}
}

// Validate is the single-shot toll gate API: no oracle, no retries.
func (e *Engine) Validate(source string) (internal.TollGateResult, error) {
	result := e.gate.Validate(source)
	if !result.Passed {
		return result, &GenerationError{
			Code:       CodeTollGateFailed,
			Message:    fmt.Sprintf("%d structural violations", len(result.Violations)),
			Violations: result.Violations,
		}
	}
	return result, nil
}

func (e *Engine) parseIntent(ctx context.Context, req SynthesisRequest) (*internal.IntentModel, error) {
	prompt := prompts.BuildPrompt(e.templates["phase1_intent"], prompts.PromptVariables{
		Intent:        req.Intent,
		SecurityLevel: req.SecurityLevel,
	})

	response, err := e.oracles[ai.TaskIntent].Complete(ctx, ai.Request{Prompt: prompt})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &GenerationError{Code: CodePhase1Failed, Message: fmt.Sprintf("intent oracle failed: %v", err)}
	}

	model, err := parser.ParseIntentModel(response)
	if err != nil {
		return nil, &GenerationError{Code: CodePhase1Failed, Message: fmt.Sprintf("failed to parse intent model: %v", err)}
	}
	return model, nil
}

func (e *Engine) draft(ctx context.Context, req SynthesisRequest, model *internal.IntentModel, mode lint.Mode, violations []internal.Violation) (string, error) {
	violationContext := prompts.BuildViolationContext(violations, func(ruleID string) string {
		if doc, ok := e.kb.RuleDoc(ruleID); ok {
			return doc.Body
		}
		return ""
	})

	code, err := e.generate(ctx, req, model, mode, violationContext)
	if err != nil {
		return "", err
	}
	return code, nil
}

// generate runs one TaskGenerate call and strips the response down to code.
func (e *Engine) generate(ctx context.Context, req SynthesisRequest, model *internal.IntentModel, mode lint.Mode, violationContext string) (string, error) {
	modelJSON, err := json.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("marshal intent model: %w", err)
	}

	distinctness := ""
	if model.HasFeature("multisig") || model.Signers >= 2 {
		distinctness = "yes"
	}

	prompt := prompts.BuildPrompt(e.templates["phase2_generate"], prompts.PromptVariables{
		Intent:           req.Intent,
		SecurityLevel:    req.SecurityLevel,
		Mode:             mode.String(),
		IntentModelJSON:  string(modelJSON),
		KnowledgeContext: e.kb.Context(mode),
		ViolationContext: violationContext,
		DistinctnessRule: distinctness,
	})

	response, err := e.oracles[ai.TaskGenerate].Complete(ctx, ai.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}

	code := cleaner.CleanCode(response)
	if code == "" {
		return "", fmt.Errorf("generation returned empty code")
	}
	logger.Debug("Draft produced: %d chars", len(code))
	return code, nil
}

// lintLoop redrafts against lint feedback up to LintRetries times.
// Returns the passing draft, or ok=false when the budget is spent.
func (e *Engine) lintLoop(ctx context.Context, draft string, mode lint.Mode, model *internal.IntentModel) (string, bool) {
	for attempt := 0; attempt < e.bounds.LintRetries; attempt++ {
		result := lint.Lint(draft, mode)
		if result.Passed {
			return draft, true
		}
		logger.Warn("Lint failed with %d violations (attempt %d/%d)", len(result.Blocking()), attempt+1, e.bounds.LintRetries)
		if attempt == e.bounds.LintRetries-1 {
			break
		}

		lintContext := prompts.BuildLintContext(lint.FormatForPrompt(result.Blocking()))
		redraft, err := e.generateWithContext(ctx, model, mode, lintContext)
		if err != nil {
			logger.Warn("Lint redraft failed: %v", err)
			return "", false
		}
		draft = redraft
	}
	return "", false
}

func (e *Engine) generateWithContext(ctx context.Context, model *internal.IntentModel, mode lint.Mode, violationContext string) (string, error) {
	return e.generate(ctx, SynthesisRequest{Intent: model.Purpose, SecurityLevel: "high"}, model, mode, violationContext)
}

// compileLoop drives the compile-fix cycle. An empty returned error string
// means the draft compiles.
func (e *Engine) compileLoop(ctx context.Context, draft string) (string, string) {
	lastError := ""
	for attempt := 0; attempt < e.bounds.FixRetries; attempt++ {
		result := e.compiler.Compile(ctx, draft)
		if result.Success {
			return draft, ""
		}
		lastError = result.Err.Raw
		logger.Warn("Compile failed (attempt %d/%d): %s", attempt+1, e.bounds.FixRetries, result.Err.Error())

		if result.Err.Type == compiler.CompilerNotFoundError {
			// No amount of fixing helps without a compiler.
			return draft, lastError
		}
		if attempt == e.bounds.FixRetries-1 {
			break
		}

		fixed, applied := ApplyDeterministicFix(draft, result.Err)
		if applied {
			logger.Info("Deterministic fix applied for %s (no oracle call)", result.Err.Type)
			draft = fixed
			continue
		}

		oracleFixed, err := e.requestSyntaxFix(ctx, draft, result.Err)
		if err != nil {
			logger.Warn("Oracle syntax fix failed: %v", err)
			return draft, lastError
		}
		draft = oracleFixed
	}
	return draft, lastError
}

func (e *Engine) requestSyntaxFix(ctx context.Context, code string, cerr *compiler.CompileError) (string, error) {
	prompt := prompts.BuildPrompt(e.templates["syntax_fix"], prompts.PromptVariables{
		Code:          code,
		CompilerError: cerr.Raw,
		CompilerHint:  cerr.Hint,
	})

	response, err := e.oracles[ai.TaskFix].Complete(ctx, ai.Request{
		Prompt:       prompt,
		SystemPrompt: syntaxFixSystemPrompt,
	})
	if err != nil {
		return "", err
	}

	fixed := cleaner.CleanCode(response)
	if fixed == "" {
		return "", fmt.Errorf("syntax fix returned empty code")
	}
	return fixed, nil
}

// commit stores the turn and assembles the success result. State is written
// only here, after every gate has passed.
func (e *Engine) commit(req SynthesisRequest, model *internal.IntentModel, code string, tollGate internal.TollGateResult, sanityResult internal.SanityResult) (*SynthesisResult, error) {
	name := contractName(code)

	sessionID := ""
	if e.store != nil {
		sess := e.store.GetOrCreate(req.SessionID)
		sessionID = sess.ID
		if err := e.store.StoreTurn(sess.ID, session.Turn{
			Intent:      req.Intent,
			IntentModel: *model,
			Code:        code,
			TollGate:    tollGate,
		}); err != nil {
			logger.Warn("Failed to store session turn: %v", err)
		}
	}

	return &SynthesisResult{
		ContractName: name,
		Code:         code,
		IntentModel:  *model,
		TollGate:     tollGate,
		SanityCheck:  sanityResult,
		SessionID:    sessionID,
	}, nil
}

func contractName(code string) string {
	const marker = "contract "
	idx := strings.Index(code, marker)
	if idx < 0 {
		return "GeneratedContract"
	}
	rest := code[idx+len(marker):]
	end := strings.IndexAny(rest, "( {\n")
	if end <= 0 {
		return "GeneratedContract"
	}
	return strings.TrimSpace(rest[:end])
}
