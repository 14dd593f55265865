package detectors

import (
	"fmt"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
)

// MissingValueEnforcement flags spending paths that touch outputs but
// neither assert an explicit output value nor pin a strict single-output
// count. Either anchor bounds where the input value may go.
type MissingValueEnforcement struct{}

func (MissingValueEnforcement) ID() string { return "missing_value_enforcement.cash" }

func (MissingValueEnforcement) Detect(f *astparser.Facts) *internal.Violation {
	touchesOutputs := map[string]bool{}
	for _, ref := range f.OutputRefs {
		touchesOutputs[ref.Function] = true
	}
	for _, fn := range f.Functions {
		if !touchesOutputs[fn.Name] {
			continue
		}
		if enforcesValue(f, fn.Name) {
			continue
		}
		return &internal.Violation{
			Rule:     "missing_value_enforcement.cash",
			Reason:   fmt.Sprintf("%s() handles outputs without a value guard or a strict tx.outputs.length == 1 pin", fn.Name),
			Exploit:  "The spender sends an arbitrarily small amount to the validated destination and keeps the remainder.",
			Location: internal.Location{Line: fn.Start, Function: fn.Name},
			Severity: internal.SeverityHigh,
		}
	}
	return nil
}

func enforcesValue(f *astparser.Facts, fn string) bool {
	for _, v := range f.ValidationsIn(fn) {
		if v.ValueIndex != nil {
			return true
		}
		if !v.ValidatesOutputCount {
			continue
		}
		for _, c := range v.Comparisons {
			if c.Left == "tx.outputs.length" && c.Op == "==" && c.Right == "1" {
				return true
			}
		}
	}
	return false
}
