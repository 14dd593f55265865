package detectors

import (
	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// Detector inspects one fact set and reports at most one violation.
// Detectors are pure and independent: no detector may read another's output.
type Detector interface {
	ID() string
	Detect(f *astparser.Facts) *internal.Violation
}

// All returns the full registry in fixed order. The order is stable for
// reporting only; detection results never depend on it.
func All() []Detector {
	return []Detector{
		ImplicitOutputOrdering{},
		MissingOutputLimit{},
		UnvalidatedPosition{},
		FeeAssumption{},
		DivisionByZero{},
		TokenPairIncomplete{},
		CovenantContinuation{},
		TimeOperatorMisuse{},
		TautologicalGuard{},
		SignatureReuse{},
		MultisigDistinctness{},
		EVMHallucination{},
		EmptyFunctionBody{},
		MissingValueEnforcement{},
		SemanticTypeMismatch{},
		WeakOutputCountLimit{},
		MissingOutputAnchor{},
		UnboundedMint{},
		StatefulWithoutStateCheck{},
	}
}

// RunAll executes every registered detector over one fact set. A panicking
// detector is logged and treated as "no violation"; it never aborts the batch.
func RunAll(f *astparser.Facts) []internal.Violation {
	var out []internal.Violation
	for _, d := range All() {
		if v := runOne(d, f); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func runOne(d Detector, f *astparser.Facts) (v *internal.Violation) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("detector %s panicked, skipping: %v", d.ID(), r)
			v = nil
		}
	}()
	return d.Detect(f)
}
