package detectors

import (
	"fmt"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
)

// CovenantContinuation flags stateful contracts that never assert their own
// script continues into an output. Without continuation the state machine
// ends on the first spend.
type CovenantContinuation struct{}

func (CovenantContinuation) ID() string { return "covenant_continuation.cash" }

func (CovenantContinuation) Detect(f *astparser.Facts) *internal.Violation {
	if !f.IsStateful {
		return nil
	}
	for _, v := range f.Validations {
		if v.ValidatesLockingBytecode && strings.Contains(v.Raw, "activeBytecode") {
			return nil
		}
	}
	return &internal.Violation{
		Rule:     "covenant_continuation.cash",
		Reason:   "stateful contract has no guard binding an output's lockingBytecode to this.activeBytecode",
		Exploit:  "The first spender exits the covenant entirely, taking the managed funds out of the state machine's control.",
		Location: internal.Location{},
		Severity: internal.SeverityHigh,
	}
}

// StatefulWithoutStateCheck flags contracts that carry state markers but
// never validate a commitment over that state.
type StatefulWithoutStateCheck struct{}

func (StatefulWithoutStateCheck) ID() string { return "stateful_without_state_check.cash" }

func (StatefulWithoutStateCheck) Detect(f *astparser.Facts) *internal.Violation {
	if !f.IsStateful {
		return nil
	}
	for _, v := range f.Validations {
		if strings.Contains(v.Raw, "hash256(") || strings.Contains(v.Raw, "hash160(") {
			return nil
		}
	}
	return &internal.Violation{
		Rule:     "stateful_without_state_check.cash",
		Reason:   "state is hashed somewhere in the contract but no guard ever validates a state commitment",
		Exploit:  "The spender advances the contract with fabricated state because nothing ties the new state to the committed one.",
		Location: internal.Location{},
		Severity: internal.SeverityMedium,
	}
}

// TimeOperatorMisuse flags time comparisons using > or <=. Consensus
// evaluates timelocks against >= / <, so the off-by-one forms leave either a
// dead block or a premature unlock.
type TimeOperatorMisuse struct{}

func (TimeOperatorMisuse) ID() string { return "time_validation_error.cash" }

func (TimeOperatorMisuse) Detect(f *astparser.Facts) *internal.Violation {
	for _, v := range f.Validations {
		if !v.IsTimeCheck {
			continue
		}
		for _, c := range v.Comparisons {
			if !strings.Contains(c.Left, "tx.time") && !strings.Contains(c.Left, "tx.age") {
				continue
			}
			if c.Op == ">" || c.Op == "<=" {
				return &internal.Violation{
					Rule:     "time_validation_error.cash",
					Reason:   fmt.Sprintf("time comparison uses %q; locktime semantics require >= or <", c.Op),
					Exploit:  "The boundary block is excluded or included off-by-one from the author's intent, shifting when the path actually unlocks.",
					Location: internal.Location{Line: v.Line, Function: v.Function},
					Severity: internal.SeverityMedium,
				}
			}
		}
	}
	return nil
}
