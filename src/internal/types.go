package internal

import "strings"

// Severity mirrors the rule registry's exploit-impact scale.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Rank orders severities for dedup (higher wins).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical
	case "HIGH":
		return SeverityHigh
	case "MEDIUM":
		return SeverityMedium
	case "LOW":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Location points at where a violation was observed. OutputIndex is set only
// for rules about a specific tx.outputs slot.
type Location struct {
	Line        int    `json:"line,omitempty"`
	Function    string `json:"function,omitempty"`
	OutputIndex *int   `json:"output_index,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Violation is emitted by exactly one detector or lint rule and is never
// mutated afterwards. Dedup by Rule happens only in the scoring engine.
type Violation struct {
	Rule     string   `json:"rule"`
	Reason   string   `json:"reason"`
	Exploit  string   `json:"exploit"`
	Location Location `json:"location"`
	Severity Severity `json:"severity"`
}

// IntentModel is the structured output of the intent-parsing phase.
type IntentModel struct {
	ContractType string   `json:"contract_type"`
	Features     []string `json:"features"`
	Signers      int      `json:"signers"`
	Threshold    int      `json:"threshold"`
	TimeoutDays  int      `json:"timeout_days"`
	Purpose      string   `json:"purpose"`
}

func (m IntentModel) HasFeature(name string) bool {
	for _, f := range m.Features {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// TollGateResult is the deterministic verdict for one source string.
type TollGateResult struct {
	Passed             bool        `json:"passed"`
	Violations         []Violation `json:"violations"`
	HallucinationFlags []string    `json:"hallucination_flags"`
	StructuralScore    float64     `json:"structural_score"`
}

// SanityResult reports intent/code alignment evidence.
type SanityResult struct {
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// AuditIssue is the user-facing rendering of one violation or compile error.
type AuditIssue struct {
	Title          string   `json:"title"`
	Severity       Severity `json:"severity"`
	Line           int      `json:"line,omitempty"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	RuleID         string   `json:"rule_id"`
	CanFix         bool     `json:"can_fix"`
}

// AuditReport combines the deterministic bucket (0-70) and the semantic
// bucket (0-30). DisplayScore carries the presentation floor; deployment is
// gated on the raw buckets, not just the displayed number.
type AuditReport struct {
	DeterministicScore int               `json:"deterministic_score"`
	SemanticScore      int               `json:"semantic_score"`
	TotalScore         int               `json:"total_score"`
	DisplayScore       int               `json:"display_score"`
	RiskLevel          string            `json:"risk_level"`
	SemanticCategory   string            `json:"semantic_category"`
	DeploymentAllowed  bool              `json:"deployment_allowed"`
	Issues             []AuditIssue      `json:"issues"`
	CountsBySeverity   map[Severity]int  `json:"counts_by_severity"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}
