package detectors

import (
	"fmt"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
)

// TokenPairIncomplete flags output indexes with a tokenCategory guard but no
// tokenAmount guard in the same function, or the reverse. Half a token check
// allows category confusion or silent inflation.
type TokenPairIncomplete struct{}

func (TokenPairIncomplete) ID() string { return "token_pair_incomplete.cash" }

func (TokenPairIncomplete) Detect(f *astparser.Facts) *internal.Violation {
	for _, fn := range f.Functions {
		cats := map[int]int{} // index -> line of first guard
		amts := map[int]bool{}
		for _, v := range f.ValidationsIn(fn.Name) {
			if v.TokenCategoryIndex != nil {
				if _, ok := cats[*v.TokenCategoryIndex]; !ok {
					cats[*v.TokenCategoryIndex] = v.Line
				}
			}
			if v.TokenAmountIndex != nil {
				amts[*v.TokenAmountIndex] = true
			}
		}
		for idx, line := range cats {
			if !amts[idx] {
				i := idx
				return &internal.Violation{
					Rule:     "token_pair_incomplete.cash",
					Reason:   fmt.Sprintf("tx.outputs[%d].tokenCategory is validated in %s() but tokenAmount is not", idx, fn.Name),
					Exploit:  "The right token category can carry an arbitrary amount, letting the spender inflate or drain the token balance.",
					Location: internal.Location{Line: line, Function: fn.Name, OutputIndex: &i},
					Severity: internal.SeverityCritical,
				}
			}
		}
		for _, v := range f.ValidationsIn(fn.Name) {
			if v.TokenAmountIndex == nil {
				continue
			}
			if _, ok := cats[*v.TokenAmountIndex]; !ok {
				i := *v.TokenAmountIndex
				return &internal.Violation{
					Rule:     "token_pair_incomplete.cash",
					Reason:   fmt.Sprintf("tx.outputs[%d].tokenAmount is validated in %s() but tokenCategory is not", i, fn.Name),
					Exploit:  "The right amount of a worthless substitute category passes the guard, swapping the real token out of the covenant.",
					Location: internal.Location{Line: v.Line, Function: fn.Name, OutputIndex: &i},
					Severity: internal.SeverityCritical,
				}
			}
		}
	}
	return nil
}

// UnboundedMint flags mint-named functions that reference token amounts
// without any tokenAmount guard bounding the issuance.
type UnboundedMint struct{}

func (UnboundedMint) ID() string { return "unbounded_mint.cash" }

func (UnboundedMint) Detect(f *astparser.Facts) *internal.Violation {
	for _, fn := range f.Functions {
		if !strings.Contains(strings.ToLower(fn.Name), "mint") {
			continue
		}
		if !strings.Contains(fn.Body, "tokenAmount") {
			continue
		}
		bounded := false
		for _, v := range f.ValidationsIn(fn.Name) {
			if v.TokenAmountIndex != nil {
				bounded = true
				break
			}
		}
		if !bounded {
			return &internal.Violation{
				Rule:     "unbounded_mint.cash",
				Reason:   fmt.Sprintf("%s() touches tokenAmount without any guard bounding the minted amount", fn.Name),
				Exploit:  "A caller mints an arbitrary token supply in a single spend, diluting every existing holder.",
				Location: internal.Location{Line: fn.Start, Function: fn.Name},
				Severity: internal.SeverityHigh,
			}
		}
	}
	return nil
}
