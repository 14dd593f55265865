package detectors

import (
	"fmt"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/astparser"
)

// SignatureReuse flags one signature variable checked against more than one
// public key inside a single function. One real signature then satisfies
// what looks like a multi-party requirement.
type SignatureReuse struct{}

func (SignatureReuse) ID() string { return "signature_reuse.cash" }

func (SignatureReuse) Detect(f *astparser.Facts) *internal.Violation {
	type key struct{ fn, sig string }
	pubkeys := map[key]map[string]bool{}
	for _, call := range f.CheckSigCalls {
		k := key{call.Function, call.Sig}
		if pubkeys[k] == nil {
			pubkeys[k] = map[string]bool{}
		}
		pubkeys[k][call.PubKey] = true
		if len(pubkeys[k]) > 1 {
			return &internal.Violation{
				Rule:     "signature_reuse.cash",
				Reason:   fmt.Sprintf("signature %s is checked against multiple public keys in %s()", call.Sig, call.Function),
				Exploit:  "A single signer passes both checkSig calls with one signature, collapsing the multi-party requirement to one party.",
				Location: internal.Location{Function: call.Function},
				Severity: internal.SeverityCritical,
			}
		}
	}
	return nil
}

// MultisigDistinctness flags multisig-shaped contracts (two or more pubkey
// constructor params) that never assert the keys are pairwise distinct.
type MultisigDistinctness struct{}

func (MultisigDistinctness) ID() string { return "multisig_distinctness_flaw.cash" }

func (MultisigDistinctness) Detect(f *astparser.Facts) *internal.Violation {
	keys := f.PubKeyParams()
	if len(keys) < 2 {
		return nil
	}
	names := map[string]bool{}
	for _, p := range keys {
		names[p.Name] = true
	}
	for _, v := range f.Validations {
		for _, c := range v.Comparisons {
			if c.Op == "!=" && names[c.Left] && names[c.Right] && c.Left != c.Right {
				return nil
			}
		}
	}
	return &internal.Violation{
		Rule:     "multisig_distinctness_flaw.cash",
		Reason:   fmt.Sprintf("%d pubkey constructor params with no pairwise != guard between them", len(keys)),
		Exploit:  "The contract can be instantiated with the same key in every slot, so one keyholder clears the whole threshold alone.",
		Location: internal.Location{},
		Severity: internal.SeverityHigh,
	}
}
