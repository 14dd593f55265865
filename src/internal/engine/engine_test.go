package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CovenantBits/Covforge/src/internal/ai"
	"github.com/CovenantBits/Covforge/src/internal/compiler"
	"github.com/CovenantBits/Covforge/src/internal/knowledge"
	"github.com/CovenantBits/Covforge/src/internal/session"
	"github.com/CovenantBits/Covforge/src/internal/tollgate"
)

// stubOracle replays canned responses in order, repeating the last one.
type stubOracle struct {
	responses []string
	err       error
	calls     int
}

func (s *stubOracle) Complete(_ context.Context, _ ai.Request) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *stubOracle) Name() string { return "stub" }
func (s *stubOracle) Close() error { return nil }

// stubCompiler fails the first failures calls, then succeeds.
type stubCompiler struct {
	failures int
	failWith *compiler.CompileError
	calls    int
}

func (s *stubCompiler) Compile(_ context.Context, _ string) compiler.Result {
	s.calls++
	if s.calls <= s.failures {
		return compiler.Result{Err: s.failWith}
	}
	return compiler.Result{Success: true, Artifact: "aabbcc"}
}

const cleanVault = `pragma cashscript ^0.13.0;

contract PayoutVault(bytes35 recipientLock, pubkey owner) {
    function release(sig ownerSig) {
        require(checkSig(ownerSig, owner));
        require(tx.outputs.length == 1);
        require(tx.outputs[0].lockingBytecode == recipientLock);
        require(tx.outputs[0].value == tx.inputs[this.activeInputIndex].value);
    }
}`

const sharedSigContract = `pragma cashscript ^0.13.0;

contract DualAuth(pubkey alice, pubkey bob) {
    function spend(sig s) {
        require(checkSig(s, alice));
        require(checkSig(s, bob));
    }
}`

const escrowIntent = `{"contract_type": "escrow", "features": ["escrow"], "purpose": "hold funds"}`

// installTemplates makes minimal prompt templates resolvable from the
// test working directory.
func installTemplates(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	promptDir := filepath.Join(dir, "strategy", "prompts")
	require.NoError(t, os.MkdirAll(promptDir, 0o755))
	for name, body := range map[string]string{
		"phase1_intent":   "Parse: {{.Intent}}",
		"phase2_generate": "Generate for {{.Mode}}: {{.Intent}}\n{{.ViolationContext}}",
		"syntax_fix":      "Fix: {{.CompilerError}}\n{{.Code}}",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(promptDir, name+".tmpl"), []byte(body), 0o644))
	}
	t.Chdir(dir)
}

func newTestEngine(t *testing.T, oracles Oracles, comp compiler.Compiler) (*Engine, *session.MemoryStore) {
	t.Helper()
	installTemplates(t)
	store := session.NewMemoryStore()
	kb := knowledge.Load(filepath.Join(t.TempDir(), "no-kb"))
	e, err := New(oracles, comp, tollgate.New(), store, kb, Bounds{GenRetries: 2, LintRetries: 2, FixRetries: 3})
	require.NoError(t, err)
	return e, store
}

func TestGenerateGuardedHappyPath(t *testing.T) {
	gen := &stubOracle{responses: []string{"```cashscript\n" + cleanVault + "\n```"}}
	oracles := Oracles{
		ai.TaskIntent:   &stubOracle{responses: []string{escrowIntent}},
		ai.TaskGenerate: gen,
		ai.TaskFix:      &stubOracle{responses: []string{cleanVault}},
	}
	e, store := newTestEngine(t, oracles, &stubCompiler{})

	result, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "escrow vault"})
	require.NoError(t, err)

	assert.Equal(t, "PayoutVault", result.ContractName)
	assert.Equal(t, cleanVault, result.Code)
	assert.True(t, result.TollGate.Passed)
	assert.True(t, result.SanityCheck.Passed)
	assert.Equal(t, 1, gen.calls, "clean draft converges on the first attempt")

	require.NotEmpty(t, result.SessionID)
	sess, ok := store.Get(result.SessionID)
	require.True(t, ok)
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, cleanVault, sess.CurrentCode)
}

func TestGenerateGuardedRequiresIntent(t *testing.T) {
	e, _ := newTestEngine(t, Oracles{}, &stubCompiler{})

	_, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "   "})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeMissingIntent, genErr.Code)
}

func TestGenerateGuardedIntentOracleFailure(t *testing.T) {
	oracles := Oracles{
		ai.TaskIntent: &stubOracle{err: errors.New("provider down")},
	}
	e, _ := newTestEngine(t, oracles, &stubCompiler{})

	_, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "anything"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodePhase1Failed, genErr.Code)
}

func TestGenerateGuardedUnparseableIntent(t *testing.T) {
	oracles := Oracles{
		ai.TaskIntent: &stubOracle{responses: []string{"sorry, I cannot help with that"}},
	}
	e, _ := newTestEngine(t, oracles, &stubCompiler{})

	_, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "anything"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodePhase1Failed, genErr.Code)
}

func TestGenerateGuardedExhaustsOnTollGateFailures(t *testing.T) {
	gen := &stubOracle{responses: []string{sharedSigContract}}
	oracles := Oracles{
		ai.TaskIntent:   &stubOracle{responses: []string{escrowIntent}},
		ai.TaskGenerate: gen,
		ai.TaskFix:      &stubOracle{responses: []string{sharedSigContract}},
	}
	e, _ := newTestEngine(t, oracles, &stubCompiler{})

	_, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "dual auth"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeGenerationExhausted, genErr.Code)
	assert.NotEmpty(t, genErr.Violations, "toll-gate failures carry their violation context out")
	assert.Equal(t, 2, gen.calls, "one draft per generation attempt")
}

func TestGenerateGuardedGuardFailureClearsContext(t *testing.T) {
	gen := &stubOracle{responses: []string{"contract C() { function f() { require(msg.sender == 0); } }"}}
	oracles := Oracles{
		ai.TaskIntent:   &stubOracle{responses: []string{escrowIntent}},
		ai.TaskGenerate: gen,
		ai.TaskFix:      &stubOracle{responses: []string{cleanVault}},
	}
	e, _ := newTestEngine(t, oracles, &stubCompiler{})

	_, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "anything"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeGenerationExhausted, genErr.Code)
	assert.Empty(t, genErr.Violations, "language-guard failures never carry violation context")
	assert.Equal(t, 2, gen.calls)
}

func TestGenerateGuardedOracleSyntaxFix(t *testing.T) {
	fix := &stubOracle{responses: []string{cleanVault}}
	oracles := Oracles{
		ai.TaskIntent:   &stubOracle{responses: []string{escrowIntent}},
		ai.TaskGenerate: &stubOracle{responses: []string{cleanVault}},
		ai.TaskFix:      fix,
	}
	comp := &stubCompiler{
		failures: 1,
		failWith: &compiler.CompileError{Type: compiler.UnknownError, Raw: "something odd"},
	}
	e, _ := newTestEngine(t, oracles, comp)

	result, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "escrow vault"})
	require.NoError(t, err)
	assert.Equal(t, cleanVault, result.Code)
	assert.Equal(t, 1, fix.calls, "one oracle fix round before the compile succeeds")
	assert.Equal(t, 2, comp.calls)
}

func TestGenerateGuardedCompilerNotFoundAbortsFixLoop(t *testing.T) {
	fix := &stubOracle{responses: []string{cleanVault}}
	oracles := Oracles{
		ai.TaskIntent:   &stubOracle{responses: []string{escrowIntent}},
		ai.TaskGenerate: &stubOracle{responses: []string{cleanVault}},
		ai.TaskFix:      fix,
	}
	comp := &stubCompiler{
		failures: 100,
		failWith: &compiler.CompileError{Type: compiler.CompilerNotFoundError, Raw: "cashc not found"},
	}
	e, _ := newTestEngine(t, oracles, comp)

	_, err := e.GenerateGuarded(context.Background(), SynthesisRequest{Intent: "escrow vault"})
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeGenerationExhausted, genErr.Code)
	assert.Equal(t, "cashc not found", genErr.LastCompilerError)
	assert.Zero(t, fix.calls, "no fix attempts without a compiler")
}

func TestGenerateGuardedCancelledContext(t *testing.T) {
	oracles := Oracles{
		ai.TaskIntent:   &stubOracle{responses: []string{escrowIntent}},
		ai.TaskGenerate: &stubOracle{responses: []string{cleanVault}},
		ai.TaskFix:      &stubOracle{responses: []string{cleanVault}},
	}
	e, _ := newTestEngine(t, oracles, &stubCompiler{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.GenerateGuarded(ctx, SynthesisRequest{Intent: "escrow vault"})
	assert.Error(t, err)
}

func TestValidateSingleShot(t *testing.T) {
	e, _ := newTestEngine(t, Oracles{}, &stubCompiler{})

	result, err := e.Validate(cleanVault)
	require.NoError(t, err)
	assert.True(t, result.Passed)

	result, err = e.Validate(sharedSigContract)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, CodeTollGateFailed, genErr.Code)
	assert.False(t, result.Passed)
	assert.Equal(t, genErr.Violations, result.Violations)
}

func TestNewRejectsMissingTemplates(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := New(Oracles{}, &stubCompiler{}, tollgate.New(), session.NewMemoryStore(),
		knowledge.Load("no-kb"), DefaultBounds())
	require.Error(t, err)
}

func TestContractName(t *testing.T) {
	assert.Equal(t, "PayoutVault", contractName(cleanVault))
	assert.Equal(t, "GeneratedContract", contractName("no contract keyword here"))
}
