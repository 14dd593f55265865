package guard

import (
	"regexp"

	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// forbidden pairs a pattern with the reason surfaced to the orchestrator.
// Only unsafe shapes are listed; secure covenant patterns such as
// tx.outputs[n].lockingBytecode and tx.inputs[this.activeInputIndex].* pass
// untouched.
var forbidden = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`tx\.inputs\[\s*0\s*\]`), "UNSAFE: Hardcoded tx.inputs[0] is vulnerable to input reordering. Use tx.inputs[this.activeInputIndex] instead."},
	{regexp.MustCompile(`tx\.inputs\[\s*1\s*\]`), "UNSAFE: Hardcoded tx.inputs[1] is vulnerable to input reordering. Use tx.inputs[this.activeInputIndex] instead."},
	{regexp.MustCompile(`tx\.inputs\[\s*2\s*\]`), "UNSAFE: Hardcoded tx.inputs[2] is vulnerable to input reordering. Use tx.inputs[this.activeInputIndex] instead."},
	{regexp.MustCompile(`tx\.inputs\[\s*3\s*\]`), "UNSAFE: Hardcoded tx.inputs[3] is vulnerable to input reordering. Use tx.inputs[this.activeInputIndex] instead."},
	{regexp.MustCompile(`msg\.sender`), "EVM Hallucination: msg.sender does not exist in CashScript."},
	{regexp.MustCompile(`msg\.value`), "EVM Hallucination: msg.value does not exist in CashScript."},
	{regexp.MustCompile(`mapping\s*\(`), "EVM Hallucination: mappings do not exist in CashScript."},
	{regexp.MustCompile(`emit\s+\w+`), "EVM Hallucination: events (emit) do not exist in CashScript."},
	{regexp.MustCompile(`modifier\s+\w+`), "EVM Hallucination: modifiers do not exist in CashScript."},
	{regexp.MustCompile(`block\.timestamp`), "Forbidden: use tx.time for temporal checks."},
	{regexp.MustCompile(`\baddress\s+`), "EVM Hallucination: address type should be bytes20/bytes in CashScript."},
	{regexp.MustCompile(`\bpayable\s+`), "EVM Hallucination: payable modifier does not exist in CashScript."},
	{regexp.MustCompile(`\bview\s+\w+\s*\(`), "EVM Hallucination: view modifier does not exist in CashScript."},
	{regexp.MustCompile(`\bpure\s+\w+\s*\(`), "EVM Hallucination: pure modifier does not exist in CashScript."},
	{regexp.MustCompile(`revert\s*\(`), "EVM Hallucination: revert() does not exist in CashScript. Use require() instead."},
	{regexp.MustCompile(`assembly\s*\{`), "EVM Hallucination: inline assembly does not exist in CashScript."},
	{regexp.MustCompile(`this\.lockingBytecode`), "Invalid in CashScript ^0.13.x. Use this.activeBytecode instead."},
}

// Check scans a draft for forbidden patterns. It returns the first reason
// found and ok=false, or ok=true for a clean draft.
func Check(code string) (reason string, ok bool) {
	for _, f := range forbidden {
		if f.re.MatchString(code) {
			logger.Debug("language guard triggered: %s", f.re.String())
			return f.reason, false
		}
	}
	return "", true
}
