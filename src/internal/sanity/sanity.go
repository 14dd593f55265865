package sanity

import (
	"fmt"
	"regexp"

	"github.com/CovenantBits/Covforge/src/internal"
)

// featureEvidence maps an intent feature to patterns at least one of which
// must appear in the generated code.
var featureEvidence = map[string][]*regexp.Regexp{
	"timelock": {regexp.MustCompile(`tx\.time`), regexp.MustCompile(`tx\.age`)},
	"multisig": {regexp.MustCompile(`checkSig`), regexp.MustCompile(`checkMultiSig`), regexp.MustCompile(`pubkey`)},
	"escrow":   {regexp.MustCompile(`tx\.outputs`), regexp.MustCompile(`lockingBytecode`)},
	"tokens":   {regexp.MustCompile(`tokenCategory`), regexp.MustCompile(`tokenAmount`)},
	"minting":  {regexp.MustCompile(`tokenAmount`)},
	"stateful": {regexp.MustCompile(`this\.activeBytecode`), regexp.MustCompile(`activeInputIndex`)},
}

var (
	pubkeyDeclRe = regexp.MustCompile(`pubkey\s+(\w+)`)
	gteRe        = regexp.MustCompile(`>=`)
	txTimeRe     = regexp.MustCompile(`tx\.time`)
)

// Check verifies the draft shows evidence for every feature the intent
// model demands. It is a lightweight alignment filter, not a semantic proof.
func Check(code string, model internal.IntentModel) internal.SanityResult {
	var failures []string

	for _, feature := range model.Features {
		patterns, known := featureEvidence[feature]
		if !known {
			continue
		}
		found := false
		for _, p := range patterns {
			if p.MatchString(code) {
				found = true
				break
			}
		}
		if !found {
			failures = append(failures, fmt.Sprintf(
				"Intent specified '%s' but no evidence (e.g., %s) found in code.", feature, patterns[0]))
		}
	}

	// signature accountancy: enough distinct keys to satisfy the threshold
	if model.HasFeature("multisig") && model.Threshold > 0 {
		keys := map[string]bool{}
		for _, m := range pubkeyDeclRe.FindAllStringSubmatch(code, -1) {
			keys[m[1]] = true
		}
		if len(keys) < model.Threshold {
			failures = append(failures, fmt.Sprintf(
				"Intent required %d-of-%d multisig, but found only %d pubkeys defined.",
				model.Threshold, model.Signers, len(keys)))
		}
	}

	if model.HasFeature("timelock") && txTimeRe.MatchString(code) && !gteRe.MatchString(code) {
		failures = append(failures, "Timelock detected but secure operator '>=' is missing for temporal check.")
	}

	return internal.SanityResult{Passed: len(failures) == 0, Failures: failures}
}
