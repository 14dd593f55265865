package detectors

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
)

var feeArithmeticRe = regexp.MustCompile(`tx\.inputs\[[^\]]+\]\.value\s*-\s*tx\.outputs\[[^\]]+\]\.value`)

// FeeAssumption flags fee math derived as input value minus output value.
// That subtraction only equals the fee with exactly one input, which a
// contract cannot enforce.
type FeeAssumption struct{}

func (FeeAssumption) ID() string { return "fee_assumption_violation.cash" }

func (FeeAssumption) Detect(f *astparser.Facts) *internal.Violation {
	loc := feeArithmeticRe.FindStringIndex(f.Source())
	if loc == nil {
		return nil
	}
	line := 1
	for _, c := range f.Source()[:loc[0]] {
		if c == '\n' {
			line++
		}
	}
	return &internal.Violation{
		Rule:     "fee_assumption_violation.cash",
		Reason:   "fee computed as input value minus output value assumes a single-input transaction",
		Exploit:  "An attacker adds a second input so the subtraction no longer measures the fee, then routes the difference to themselves.",
		Location: internal.Location{Line: line},
		Severity: internal.SeverityHigh,
	}
}

// DivisionByZero flags divide/modulo operations whose divisor is not proven
// non-zero by a guard earlier in the same function.
type DivisionByZero struct{}

func (DivisionByZero) ID() string { return "division_by_zero.cash" }

func (DivisionByZero) Detect(f *astparser.Facts) *internal.Violation {
	for _, op := range f.ArithmeticOps {
		if op.Op != "divide" && op.Op != "modulo" {
			continue
		}
		if _, err := strconv.Atoi(op.Divisor); err == nil {
			continue // literal divisor
		}
		if divisorGuarded(f, op) {
			continue
		}
		return &internal.Violation{
			Rule:     "division_by_zero.cash",
			Reason:   fmt.Sprintf("%s by %s in %s() has no preceding require(%s > 0)", op.Op, op.Divisor, op.Function, op.Divisor),
			Exploit:  "A zero divisor makes the script unconditionally fail, bricking every spending path that reaches this expression.",
			Location: internal.Location{Line: op.Line, Function: op.Function},
			Severity: internal.SeverityHigh,
		}
	}
	return nil
}

// divisorGuarded looks for a guard on the same divisor that textually
// precedes the operation within the same function.
func divisorGuarded(f *astparser.Facts, op astparser.ArithmeticOp) bool {
	for _, v := range f.ValidationsIn(op.Function) {
		if v.Line >= op.Line && op.Line > 0 {
			continue
		}
		for _, c := range v.Comparisons {
			if c.Left != op.Divisor {
				continue
			}
			if (c.Op == ">" && c.Right == "0") || (c.Op == "!=" && c.Right == "0") {
				return true
			}
		}
	}
	return false
}
