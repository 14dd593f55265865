package detectors

import (
	"fmt"
	"strconv"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
)

// ImplicitOutputOrdering flags reads of an output's value/token fields in a
// function that never pins that exact output's locking bytecode. Output order
// is chosen by the transaction builder, so an unpinned index can be swapped.
type ImplicitOutputOrdering struct{}

func (ImplicitOutputOrdering) ID() string { return "implicit_output_ordering.cash" }

func (ImplicitOutputOrdering) Detect(f *astparser.Facts) *internal.Violation {
	for _, ref := range f.OutputRefs {
		if ref.Property == "lockingBytecode" {
			continue
		}
		if f.ValidatesLockingBytecodeFor(ref.Function, ref.Index) {
			continue
		}
		idx := ref.Index
		return &internal.Violation{
			Rule: "implicit_output_ordering.cash",
			Reason: fmt.Sprintf("tx.outputs[%d].%s is read in %s() without anchoring tx.outputs[%d].lockingBytecode",
				idx, ref.Property, ref.Function, idx),
			Exploit:  "An attacker builds the spending transaction with outputs reordered, redirecting the value or tokens checked at this index to an address they control.",
			Location: internal.Location{Line: ref.Line, Function: ref.Function, OutputIndex: &idx},
			Severity: internal.SeverityCritical,
		}
	}
	return nil
}

// MissingOutputLimit flags contracts that never bound tx.outputs.length,
// leaving room for attacker-appended siphon outputs. The bound is required
// even when the source never indexes tx.outputs: unclaimed value still
// flows wherever the extra outputs point.
type MissingOutputLimit struct{}

func (MissingOutputLimit) ID() string { return "missing_output_limit.cash" }

func (MissingOutputLimit) Detect(f *astparser.Facts) *internal.Violation {
	if f.HasOutputCountBound() {
		return nil
	}
	return &internal.Violation{
		Rule:     "missing_output_limit.cash",
		Reason:   "no guard constrains tx.outputs.length",
		Exploit:  "An attacker appends extra outputs to the transaction and drains any value not explicitly accounted for by the validated outputs.",
		Location: internal.Location{Function: firstOutputRefFunction(f)},
		Severity: internal.SeverityHigh,
	}
}

// UnvalidatedPosition flags contracts that never pin their own input
// position. Applies contract-wide, not just where outputs are indexed.
type UnvalidatedPosition struct{}

func (UnvalidatedPosition) ID() string { return "unvalidated_position.cash" }

func (UnvalidatedPosition) Detect(f *astparser.Facts) *internal.Violation {
	if f.HasPositionCheck() {
		return nil
	}
	return &internal.Violation{
		Rule:     "unvalidated_position.cash",
		Reason:   "no guard asserts this.activeInputIndex, so the contract's input position is attacker-controlled",
		Exploit:  "An attacker places the covenant input at an unexpected index so that the input/output correspondence the contract assumes no longer holds.",
		Location: internal.Location{Function: firstOutputRefFunction(f)},
		Severity: internal.SeverityHigh,
	}
}

func firstOutputRefFunction(f *astparser.Facts) string {
	if len(f.OutputRefs) == 0 {
		return ""
	}
	return f.OutputRefs[0].Function
}

// WeakOutputCountLimit flags loose upper bounds like tx.outputs.length <= 3
// where an exact count is enforceable.
type WeakOutputCountLimit struct{}

func (WeakOutputCountLimit) ID() string { return "weak_output_count_limit.cash" }

func (WeakOutputCountLimit) Detect(f *astparser.Facts) *internal.Violation {
	for _, v := range f.Validations {
		if !v.ValidatesOutputCount {
			continue
		}
		for _, c := range v.Comparisons {
			if c.Left != "tx.outputs.length" || c.Op != "<=" {
				continue
			}
			if n, err := strconv.Atoi(c.Right); err == nil && n > 1 {
				return &internal.Violation{
					Rule:     "weak_output_count_limit.cash",
					Reason:   fmt.Sprintf("tx.outputs.length is only bounded by <= %d instead of an exact count", n),
					Exploit:  "Within the loose bound an attacker adds unvalidated outputs that siphon change the contract never accounts for.",
					Location: internal.Location{Line: v.Line, Function: v.Function},
					Severity: internal.SeverityMedium,
				}
			}
		}
	}
	return nil
}

// MissingOutputAnchor is the file-wide companion of ImplicitOutputOrdering:
// a value read whose index has no locking-bytecode pin anywhere in the
// contract at all.
type MissingOutputAnchor struct{}

func (MissingOutputAnchor) ID() string { return "missing_output_anchor.cash" }

func (MissingOutputAnchor) Detect(f *astparser.Facts) *internal.Violation {
	anchored := map[int]bool{}
	for _, v := range f.Validations {
		if v.ValidatesLockingBytecode && v.LockingIndex != nil {
			anchored[*v.LockingIndex] = true
		}
	}
	for _, ref := range f.OutputRefs {
		if ref.Property != "value" || anchored[ref.Index] {
			continue
		}
		idx := ref.Index
		return &internal.Violation{
			Rule:     "missing_output_anchor.cash",
			Reason:   fmt.Sprintf("tx.outputs[%d].value is checked but no guard in the contract pins tx.outputs[%d].lockingBytecode", idx, idx),
			Exploit:  "The enforced amount can be paid to any script the spender chooses, including their own.",
			Location: internal.Location{Line: ref.Line, Function: ref.Function, OutputIndex: &idx},
			Severity: internal.SeverityMedium,
		}
	}
	return nil
}
