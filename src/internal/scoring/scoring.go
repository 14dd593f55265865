package scoring

import (
	"github.com/CovenantBits/Covforge/src/internal"
)

// Config carries every scoring constant so deployments can retune the
// penalty table without a rebuild.
type Config struct {
	Penalties        map[internal.Severity]int `yaml:"penalties"`
	SemanticPoints   map[string]int            `yaml:"semantic_points"`
	DisplayFloor     int                       `yaml:"display_floor"`
	DeployDetMin     int                       `yaml:"deploy_det_min"`
	DeployDisplayMin int                       `yaml:"deploy_display_min"`
}

func DefaultConfig() Config {
	return Config{
		Penalties: map[internal.Severity]int{
			internal.SeverityCritical: 20,
			internal.SeverityHigh:     20,
			internal.SeverityMedium:   10,
			internal.SeverityLow:      5,
			internal.SeverityInfo:     0,
		},
		SemanticPoints: map[string]int{
			"none":                30,
			"minor_inefficiency":  25,
			"logic_gap":           20,
			"major_protocol_flaw": 10,
			"funds_unspendable":   0,
		},
		DisplayFloor:     20,
		DeployDetMin:     50,
		DeployDisplayMin: 75,
	}
}

// Input aggregates everything the deterministic pipeline and the classify
// oracle produced for one contract.
type Input struct {
	Issues             []internal.AuditIssue
	CompileSuccess     bool
	LintPassed         bool
	StructuralScore    float64
	SemanticCategory   string
	BusinessLogicScore int
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.Penalties == nil {
		cfg.Penalties = DefaultConfig().Penalties
	}
	if cfg.SemanticPoints == nil {
		cfg.SemanticPoints = DefaultConfig().SemanticPoints
	}
	return &Engine{cfg: cfg}
}

// Score folds issues into the hybrid report. The deterministic bucket maxes
// at 70 and the semantic bucket at 30; the deployment gate reads the raw
// buckets, never the floored display value alone.
func (e *Engine) Score(in Input) internal.AuditReport {
	deduped := dedupe(in.Issues)

	det := 70
	for _, issue := range deduped {
		det -= e.cfg.Penalties[issue.Severity]
	}
	if det < 0 {
		det = 0
	}
	if !in.CompileSuccess {
		det = 0
	}

	sem := 0
	if in.SemanticCategory != "funds_unspendable" {
		sem = e.cfg.SemanticPoints[in.SemanticCategory] + clamp(in.BusinessLogicScore, 0, 10)
		if sem > 30 {
			sem = 30
		}
	}

	total := det + sem
	displayed := total
	if displayed < e.cfg.DisplayFloor {
		displayed = e.cfg.DisplayFloor
	}

	counts := map[internal.Severity]int{}
	for _, issue := range deduped {
		counts[issue.Severity]++
	}

	return internal.AuditReport{
		DeterministicScore: det,
		SemanticScore:      sem,
		TotalScore:         total,
		DisplayScore:       displayed,
		RiskLevel:          riskLevel(displayed),
		SemanticCategory:   in.SemanticCategory,
		DeploymentAllowed:  det >= e.cfg.DeployDetMin && sem > 0 && displayed >= e.cfg.DeployDisplayMin,
		Issues:             deduped,
		CountsBySeverity:   counts,
	}
}

// dedupe keeps one issue per rule id, preferring the higher severity.
func dedupe(issues []internal.AuditIssue) []internal.AuditIssue {
	seen := map[string]int{}
	var out []internal.AuditIssue
	for _, issue := range issues {
		if idx, ok := seen[issue.RuleID]; ok {
			if issue.Severity.Rank() > out[idx].Severity.Rank() {
				out[idx] = issue
			}
			continue
		}
		seen[issue.RuleID] = len(out)
		out = append(out, issue)
	}
	return out
}

// riskLevel is monotonic in the displayed score.
func riskLevel(displayed int) string {
	switch {
	case displayed >= 90:
		return "SAFE"
	case displayed >= 80:
		return "LOW"
	case displayed >= 60:
		return "MEDIUM"
	case displayed >= 40:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
