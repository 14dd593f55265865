package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CovenantBits/Covforge/src/internal"
)

func sampleAudit() internal.AuditReport {
	return internal.AuditReport{
		DeterministicScore: 55,
		SemanticScore:      20,
		TotalScore:         75,
		DisplayScore:       75,
		RiskLevel:          "LOW",
		SemanticCategory:   "logic_gap",
		DeploymentAllowed:  true,
		CountsBySeverity: map[internal.Severity]int{
			internal.SeverityHigh: 1,
			internal.SeverityLow:  2,
		},
		Issues: []internal.AuditIssue{
			{
				Title:          "Unanchored output value",
				Severity:       internal.SeverityLow,
				Line:           12,
				Description:    "Output value is not pinned to the input value.",
				Recommendation: "Anchor tx.outputs[0].value to the active input.",
				RuleID:         "missing_output_anchor.cash",
			},
			{
				Title:       "Unbounded token mint",
				Severity:    internal.SeverityHigh,
				Description: "Minted amount has no upper bound.",
				RuleID:      "unbounded_mint.cash",
			},
		},
	}
}

func TestMarkdownGeneratorRendersFullReport(t *testing.T) {
	r := NewReport("VaultV2", "a simple vault", "covenant", "pragma cashscript ^0.13.0;", sampleAudit())
	content, err := NewMarkdownGenerator().Generate(r)
	require.NoError(t, err)

	assert.Contains(t, content, "# Covforge Audit Report")
	assert.Contains(t, content, "**Contract**: `VaultV2`")
	assert.Contains(t, content, "**Mode**: covenant")
	assert.Contains(t, content, "| Deterministic (0-70) | 55 |")
	assert.Contains(t, content, "| Semantic (0-30) | 20 |")
	assert.Contains(t, content, "| Displayed | 75 |")
	assert.Contains(t, content, "✅ Allowed")
	assert.Contains(t, content, "```cashscript\npragma cashscript ^0.13.0;\n```")

	// issues render most severe first
	high := strings.Index(content, "Unbounded token mint")
	low := strings.Index(content, "Unanchored output value")
	require.Positive(t, high)
	require.Positive(t, low)
	assert.Less(t, high, low)
	assert.Contains(t, content, "**Rule**: `unbounded_mint.cash`")
	assert.Contains(t, content, "**Line**: 12")
	assert.Contains(t, content, "**Recommendation**: Anchor tx.outputs[0].value")
}

func TestMarkdownGeneratorCleanContract(t *testing.T) {
	audit := internal.AuditReport{DeploymentAllowed: false}
	r := NewReport("", "", "", "", audit)
	content, err := NewMarkdownGenerator().Generate(r)
	require.NoError(t, err)

	assert.Contains(t, content, "## ✅ No issues found")
	assert.Contains(t, content, "❌ Blocked")
	assert.NotContains(t, content, "**Contract**")
	assert.NotContains(t, content, "<details>")
}

func TestFileStorageSave(t *testing.T) {
	dir := t.TempDir()
	storage := NewFileStorage(dir)
	r := NewReport("My Vault/2", "", "", "", internal.AuditReport{})

	path, err := storage.Save(r, "# body\n")
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "audit_report_My_Vault_2_"))
	assert.True(t, strings.HasSuffix(base, ".md"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# body\n", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStorageCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	storage := NewFileStorage(dir)

	path, err := storage.Save(NewReport("V", "", "", "", internal.AuditReport{}), "x")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSanitizeFilenameComponent(t *testing.T) {
	assert.Equal(t, "unknown", sanitizeFilenameComponent(""))
	assert.Equal(t, "unknown", sanitizeFilenameComponent("  ../../  "))
	assert.Equal(t, "Vault-v1.2_final", sanitizeFilenameComponent("Vault-v1.2_final"))
	assert.Equal(t, "a_b", sanitizeFilenameComponent("a b"))
	assert.Equal(t, "etc_passwd", sanitizeFilenameComponent("/etc/passwd"))
}

type failingStorage struct{}

func (failingStorage) Save(*Report, string) (string, error) {
	return "", os.ErrPermission
}

func TestReporterPropagatesStorageError(t *testing.T) {
	rep := NewReporter(NewMarkdownGenerator(), failingStorage{})
	_, err := rep.GenerateAndSave(NewReport("V", "", "", "", internal.AuditReport{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save report")
}

func TestReporterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rep := NewReporter(NewMarkdownGenerator(), NewFileStorage(dir))
	path, err := rep.GenerateAndSave(NewReport("Vault", "intent", "escrow", "code", sampleAudit()))
	require.NoError(t, err)
	assert.FileExists(t, path)
}
