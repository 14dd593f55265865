package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CovenantBits/Covforge/src/internal"
)

func TestBuildPromptSubstitutesVariables(t *testing.T) {
	out := BuildPrompt("Build a {{.Mode}} contract for: {{.Intent}}", PromptVariables{
		Mode:   "escrow",
		Intent: "hold funds until release",
	})
	assert.Equal(t, "Build a escrow contract for: hold funds until release", out)
}

func TestBuildPromptMapVariables(t *testing.T) {
	out := BuildPrompt("Audit {{.Intent}}:\n{{.Code}}", map[string]string{
		"Intent": "vault",
		"Code":   "pragma cashscript ^0.13.0;",
	})
	assert.Contains(t, out, "Audit vault:")
	assert.Contains(t, out, "pragma cashscript ^0.13.0;")
}

func TestBuildPromptBadTemplateReturnsErrorInline(t *testing.T) {
	out := BuildPrompt("{{.Unclosed", PromptVariables{})
	assert.Contains(t, out, "failed to parse template")
	assert.Contains(t, out, "{{.Unclosed", "the raw template is preserved for diagnosis")
}

func TestBuildPromptUnknownFieldReturnsErrorInline(t *testing.T) {
	out := BuildPrompt("{{.NoSuchField}}", PromptVariables{})
	assert.Contains(t, out, "failed to execute template")
}

func TestBuildPromptCachedTemplateStaysCorrect(t *testing.T) {
	tmpl := "cached: {{.Intent}}"
	first := BuildPrompt(tmpl, PromptVariables{Intent: "one"})
	second := BuildPrompt(tmpl, PromptVariables{Intent: "two"})
	assert.Equal(t, "cached: one", first)
	assert.Equal(t, "cached: two", second)
}

func TestBuildViolationContextEmpty(t *testing.T) {
	assert.Empty(t, BuildViolationContext(nil, nil))
}

func TestBuildViolationContext(t *testing.T) {
	violations := []internal.Violation{
		{
			Rule:     "division_by_zero.cash",
			Severity: internal.SeverityHigh,
			Reason:   "unguarded divisor 'shares'",
			Exploit:  "a zero divisor makes the path unspendable",
		},
		{
			Rule:     "division_by_zero.cash",
			Severity: internal.SeverityHigh,
			Reason:   "second occurrence",
		},
	}

	out := BuildViolationContext(violations, func(ruleID string) string {
		assert.Equal(t, "division_by_zero.cash", ruleID)
		return "## Division by zero\nGuard the divisor."
	})

	assert.Contains(t, out, "MANDATORY STRUCTURAL CONSTRAINTS")
	assert.Contains(t, out, "[DIVISION_BY_ZERO]: `require(divisor > 0); a / divisor;`")
	assert.Equal(t, 1, strings.Count(out, "[DIVISION_BY_ZERO]"), "duplicate rules render one constraint")
	assert.Contains(t, out, "1. [HIGH] division_by_zero.cash: unguarded divisor 'shares'")
	assert.Contains(t, out, "REASON: a zero divisor makes the path unspendable")
	assert.Contains(t, out, "2. [HIGH] division_by_zero.cash: second occurrence")
	assert.Contains(t, out, "TARGETED ANTI-PATTERN DOCUMENTATION")
	assert.Contains(t, out, "Guard the divisor.")
}

func TestBuildViolationContextWithoutRuleDocs(t *testing.T) {
	out := BuildViolationContext([]internal.Violation{
		{Rule: "unknown_rule.cash", Severity: internal.SeverityMedium, Reason: "x"},
	}, nil)

	assert.Contains(t, out, "VIOLATION DETAILS")
	assert.NotContains(t, out, "TARGETED ANTI-PATTERN DOCUMENTATION")
	assert.Contains(t, out, "// Review anti-pattern docs", "unknown rules get the generic pattern")
}

func TestBuildLintContext(t *testing.T) {
	assert.Empty(t, BuildLintContext(""))
	out := BuildLintContext("- [LNC-003] missing value anchor")
	assert.Contains(t, out, "LINT VIOLATIONS WERE DETECTED")
	assert.Contains(t, out, "- [LNC-003] missing value anchor")
}

func TestDeriveFixHint(t *testing.T) {
	assert.Contains(t, DeriveFixHint("time_validation_error.cash"), ">=")
	assert.Contains(t, DeriveFixHint("time_validation_error"), ">=")
	assert.Equal(t, "Review the anti-pattern documentation for this rule.", DeriveFixHint("made_up_rule"))
}

func TestDeriveMandatoryPattern(t *testing.T) {
	assert.Contains(t, DeriveMandatoryPattern("missing_output_limit"), "tx.outputs.length == FIXED_COUNT")
	assert.Contains(t, DeriveMandatoryPattern("nope"), "Review anti-pattern docs")
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "strategy", "prompts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "strategy", "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "strategy", "prompts", "direct.tmpl"),
		[]byte("direct body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "strategy", "prompts", "nested.tmpl"),
		[]byte("nested body"), 0o644))
	t.Chdir(dir)

	content, err := LoadTemplate("direct")
	require.NoError(t, err)
	assert.Equal(t, "direct body", content)

	content, err = LoadTemplate("nested")
	require.NoError(t, err)
	assert.Equal(t, "nested body", content)

	_, err = LoadTemplate("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.tmpl")
}

func TestLoadContractFile(t *testing.T) {
	content, err := LoadContractFile("")
	require.NoError(t, err)
	assert.Empty(t, content)

	_, err = LoadContractFile(filepath.Join(t.TempDir(), "absent.cash"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	path := filepath.Join(t.TempDir(), "vault.cash")
	require.NoError(t, os.WriteFile(path, []byte("pragma cashscript ^0.13.0;"), 0o644))
	content, err = LoadContractFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pragma cashscript ^0.13.0;", content)
}
