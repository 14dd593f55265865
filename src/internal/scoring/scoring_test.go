package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CovenantBits/Covforge/src/internal"
)

func engine() *Engine {
	return NewEngine(DefaultConfig())
}

func TestScorePerfectContract(t *testing.T) {
	report := engine().Score(Input{
		CompileSuccess:   true,
		LintPassed:       true,
		StructuralScore:  1.0,
		SemanticCategory: "none",
	})

	assert.Equal(t, 70, report.DeterministicScore)
	assert.Equal(t, 30, report.SemanticScore)
	assert.Equal(t, 100, report.TotalScore)
	assert.Equal(t, 100, report.DisplayScore)
	assert.Equal(t, "SAFE", report.RiskLevel)
	assert.True(t, report.DeploymentAllowed)
}

func TestScoreSeverityPenalties(t *testing.T) {
	report := engine().Score(Input{
		Issues: []internal.AuditIssue{
			{RuleID: "a", Severity: internal.SeverityCritical},
			{RuleID: "b", Severity: internal.SeverityMedium},
			{RuleID: "c", Severity: internal.SeverityLow},
		},
		CompileSuccess:   true,
		SemanticCategory: "none",
	})

	assert.Equal(t, 70-20-10-5, report.DeterministicScore)
	assert.Equal(t, 30, report.SemanticScore)
}

func TestScoreOneCriticalWithProtocolFlawBlocksDeployment(t *testing.T) {
	report := engine().Score(Input{
		Issues: []internal.AuditIssue{
			{RuleID: "implicit_output_ordering.cash", Severity: internal.SeverityCritical},
		},
		CompileSuccess:     true,
		SemanticCategory:   "major_protocol_flaw",
		BusinessLogicScore: 0,
	})

	assert.Equal(t, 50, report.DeterministicScore)
	assert.Equal(t, 10, report.SemanticScore)
	assert.Equal(t, 60, report.TotalScore)
	assert.False(t, report.DeploymentAllowed, "displayed 60 is under the deploy threshold")
	assert.Equal(t, "MEDIUM", report.RiskLevel)
}

func TestScoreFundsUnspendableZeroesSemanticBucket(t *testing.T) {
	report := engine().Score(Input{
		CompileSuccess:     true,
		SemanticCategory:   "funds_unspendable",
		BusinessLogicScore: 10,
	})

	assert.Equal(t, 70, report.DeterministicScore)
	assert.Equal(t, 0, report.SemanticScore, "business logic points never rescue an unspendable contract")
	assert.Equal(t, 70, report.TotalScore)
	assert.False(t, report.DeploymentAllowed, "sem > 0 is required to deploy")
}

func TestScoreCompileFailureZeroesDeterministicBucket(t *testing.T) {
	report := engine().Score(Input{
		CompileSuccess:   false,
		SemanticCategory: "none",
	})

	assert.Equal(t, 0, report.DeterministicScore)
	assert.Equal(t, 30, report.SemanticScore)
	assert.False(t, report.DeploymentAllowed)
}

func TestScoreDisplayFloor(t *testing.T) {
	report := engine().Score(Input{
		Issues: []internal.AuditIssue{
			{RuleID: "a", Severity: internal.SeverityCritical},
			{RuleID: "b", Severity: internal.SeverityCritical},
			{RuleID: "c", Severity: internal.SeverityHigh},
			{RuleID: "d", Severity: internal.SeverityHigh},
		},
		CompileSuccess:   true,
		SemanticCategory: "funds_unspendable",
	})

	assert.Equal(t, 0, report.DeterministicScore)
	assert.Equal(t, 0, report.TotalScore)
	assert.Equal(t, 20, report.DisplayScore, "presentation floor")
	assert.Equal(t, "CRITICAL", report.RiskLevel)
	assert.False(t, report.DeploymentAllowed)
}

func TestScoreSemanticBucketCap(t *testing.T) {
	report := engine().Score(Input{
		CompileSuccess:     true,
		SemanticCategory:   "none",
		BusinessLogicScore: 10,
	})
	assert.Equal(t, 30, report.SemanticScore, "30 base + 10 business capped at 30")
}

func TestScoreDedupesByRuleID(t *testing.T) {
	report := engine().Score(Input{
		Issues: []internal.AuditIssue{
			{RuleID: "LNC-003", Severity: internal.SeverityLow},
			{RuleID: "LNC-003", Severity: internal.SeverityHigh},
			{RuleID: "LNC-003", Severity: internal.SeverityMedium},
		},
		CompileSuccess:   true,
		SemanticCategory: "none",
	})

	require.Len(t, report.Issues, 1)
	assert.Equal(t, internal.SeverityHigh, report.Issues[0].Severity, "dedupe keeps the highest severity")
	assert.Equal(t, 70-20, report.DeterministicScore)
	assert.Equal(t, 1, report.CountsBySeverity[internal.SeverityHigh])
}

func TestScoreDeploymentGateBoundary(t *testing.T) {
	// det 50 + sem 30 = 80 displayed: all three gate legs hold.
	report := engine().Score(Input{
		Issues: []internal.AuditIssue{
			{RuleID: "a", Severity: internal.SeverityCritical},
		},
		CompileSuccess:     true,
		SemanticCategory:   "none",
		BusinessLogicScore: 0,
	})
	assert.Equal(t, 50, report.DeterministicScore)
	assert.Equal(t, 80, report.TotalScore)
	assert.True(t, report.DeploymentAllowed)

	// det 40 fails the deterministic floor even with a clean semantic read.
	report = engine().Score(Input{
		Issues: []internal.AuditIssue{
			{RuleID: "a", Severity: internal.SeverityCritical},
			{RuleID: "b", Severity: internal.SeverityMedium},
		},
		CompileSuccess:   true,
		SemanticCategory: "none",
	})
	assert.Equal(t, 40, report.DeterministicScore)
	assert.Equal(t, 70, report.DisplayScore)
	assert.False(t, report.DeploymentAllowed)

	// displayed under 75 blocks even when the deterministic floor holds.
	report = engine().Score(Input{
		Issues: []internal.AuditIssue{
			{RuleID: "a", Severity: internal.SeverityCritical},
		},
		CompileSuccess:   true,
		SemanticCategory: "major_protocol_flaw",
	})
	assert.Equal(t, 50, report.DeterministicScore)
	assert.Equal(t, 60, report.DisplayScore)
	assert.False(t, report.DeploymentAllowed)
}

func TestRiskLevelBands(t *testing.T) {
	cases := map[int]string{95: "SAFE", 85: "LOW", 65: "MEDIUM", 45: "HIGH", 20: "CRITICAL"}
	for displayed, want := range cases {
		assert.Equal(t, want, riskLevel(displayed), displayed)
	}
}

func TestNewEngineFillsMissingTables(t *testing.T) {
	e := NewEngine(Config{DeployDetMin: 50, DeployDisplayMin: 75})
	report := e.Score(Input{
		Issues:           []internal.AuditIssue{{RuleID: "a", Severity: internal.SeverityHigh}},
		CompileSuccess:   true,
		SemanticCategory: "none",
	})
	assert.Equal(t, 50, report.DeterministicScore, "default penalty table applies")
	assert.Equal(t, 30, report.SemanticScore)
}
