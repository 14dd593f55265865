package detectors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
)

// evmTokens are foreign-language constructs with no meaning in CashScript.
// Their presence means the generator hallucinated an account-model contract.
var evmTokens = []string{
	"msg.sender",
	"msg.value",
	"mapping(",
	"emit ",
	"modifier ",
	"block.timestamp",
	"address payable",
	"constructor(",
	"revert(",
	"assembly{",
	"uint256",
	"int256",
	" payable",
	" view ",
	" pure ",
	"override",
	"virtual",
}

// EVMHallucination flags any occurrence of a fixed foreign-syntax token list.
type EVMHallucination struct{}

func (EVMHallucination) ID() string { return "evm_hallucination.cash" }

func (EVMHallucination) Detect(f *astparser.Facts) *internal.Violation {
	src := f.Source()
	for _, tok := range evmTokens {
		idx := strings.Index(src, tok)
		if idx < 0 {
			continue
		}
		return &internal.Violation{
			Rule:     "evm_hallucination.cash",
			Reason:   fmt.Sprintf("foreign syntax %q has no meaning in the target language", strings.TrimSpace(tok)),
			Exploit:  "The construct either fails to compile or silently compiles to something other than the intended account-model semantics.",
			Location: internal.Location{Line: 1 + strings.Count(src[:idx], "\n")},
			Severity: internal.SeverityCritical,
		}
	}
	return nil
}

// EmptyFunctionBody flags spending paths with zero guards. A guardless path
// is spendable by anyone.
type EmptyFunctionBody struct{}

func (EmptyFunctionBody) ID() string { return "empty_function_body.cash" }

func (EmptyFunctionBody) Detect(f *astparser.Facts) *internal.Violation {
	for _, fn := range f.Functions {
		if len(f.ValidationsIn(fn.Name)) == 0 {
			return &internal.Violation{
				Rule:     "empty_function_body.cash",
				Reason:   fmt.Sprintf("%s() contains no require statement", fn.Name),
				Exploit:  "Anyone can spend through this path: with no guard, the script always evaluates to true.",
				Location: internal.Location{Line: fn.Start, Function: fn.Name},
				Severity: internal.SeverityHigh,
			}
		}
	}
	return nil
}

var parenStripRe = regexp.MustCompile(`[()\s]`)

// TautologicalGuard flags comparisons whose operands are identical after
// whitespace and paren normalization. require(x == x) guards nothing.
type TautologicalGuard struct{}

func (TautologicalGuard) ID() string { return "tautological_guard.cash" }

func (TautologicalGuard) Detect(f *astparser.Facts) *internal.Violation {
	for _, v := range f.Validations {
		for _, c := range v.Comparisons {
			left := parenStripRe.ReplaceAllString(c.Left, "")
			right := parenStripRe.ReplaceAllString(c.Right, "")
			if left != "" && left == right {
				return &internal.Violation{
					Rule:     "tautological_guard.cash",
					Reason:   fmt.Sprintf("guard compares %s against itself", c.Left),
					Exploit:  "The guard is always true, so the protection the author believed it provided does not exist.",
					Location: internal.Location{Line: v.Line, Function: v.Function},
					Severity: internal.SeverityHigh,
				}
			}
		}
	}
	return nil
}

var hexLiteralRe = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// SemanticTypeMismatch flags locking-bytecode comparisons against a 32-byte
// hex literal, which is a token category shape, not a locking script shape.
type SemanticTypeMismatch struct{}

func (SemanticTypeMismatch) ID() string { return "semantic_type_mismatch.cash" }

func (SemanticTypeMismatch) Detect(f *astparser.Facts) *internal.Violation {
	for _, v := range f.Validations {
		if !v.ValidatesLockingBytecode {
			continue
		}
		for _, c := range v.Comparisons {
			lit := ""
			switch {
			case strings.Contains(c.Left, "lockingBytecode") && hexLiteralRe.MatchString(c.Right):
				lit = c.Right
			case strings.Contains(c.Right, "lockingBytecode") && hexLiteralRe.MatchString(c.Left):
				lit = c.Left
			}
			if lit == "" || len(lit) != 66 {
				continue
			}
			return &internal.Violation{
				Rule:     "semantic_type_mismatch.cash",
				Reason:   "lockingBytecode compared against a 32-byte literal, which is a token category, not a locking script",
				Exploit:  "The comparison can never hold for a real script, so the anchor either always fails or was meant for a different field entirely.",
				Location: internal.Location{Line: v.Line, Function: v.Function},
				Severity: internal.SeverityHigh,
			}
		}
	}
	return nil
}
