package tollgate

import (
	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
	"github.com/CovenantBits/Covforge/src/internal/detectors"
	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// Gate runs the full anti-pattern registry over one source string and
// produces the deterministic pass/fail verdict. Stateless; one instance can
// serve concurrent callers.
type Gate struct {
	registry []detectors.Detector
}

func New() *Gate {
	return &Gate{registry: detectors.All()}
}

// Validate extracts facts once and sweeps every detector. The structural
// score is the fraction of detectors that found nothing:
// (total - distinct failed rules) / total.
func (g *Gate) Validate(source string) internal.TollGateResult {
	facts := astparser.Parse(source)

	var violations []internal.Violation
	var flags []string
	for _, v := range detectors.RunAll(facts) {
		violations = append(violations, v)
		if v.Rule == "evm_hallucination.cash" {
			flags = append(flags, v.Reason)
		}
	}

	failed := map[string]bool{}
	for _, v := range violations {
		failed[v.Rule] = true
	}
	total := len(g.registry)
	score := float64(total-len(failed)) / float64(total)

	result := internal.TollGateResult{
		Passed:             len(violations) == 0,
		Violations:         violations,
		HallucinationFlags: flags,
		StructuralScore:    score,
	}
	if !result.Passed {
		logger.Debug("toll gate: %d violations, structural score %.2f", len(violations), score)
	}
	return result
}
