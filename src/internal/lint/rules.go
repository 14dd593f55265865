package lint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	hardcodedInputRe  = regexp.MustCompile(`tx\.inputs\[\s*0\s*\]`)
	activeIndexZeroRe = regexp.MustCompile(`this\.activeInputIndex\s*==\s*0`)
	outputIndexRe     = regexp.MustCompile(`tx\.outputs\[\s*(\d+)\s*\]`)
	lengthGuardRe     = regexp.MustCompile(`require\s*\(\s*tx\.outputs\.length\s*(==|>=)\s*(\d+)\s*\)`)
)

// checkHardcodedIndex is LNC-001: hardcoded input indexes and output reads
// with no length guard proving the index exists.
func checkHardcodedIndex(code string, _ Mode) []RuleViolation {
	var out []RuleViolation

	for _, ln := range numberedLines(code) {
		if hardcodedInputRe.MatchString(ln.Text) {
			out = append(out, RuleViolation{
				RuleID:  "LNC-001a",
				Message: "Hardcoded tx.inputs[0] — use tx.inputs[this.activeInputIndex]",
				Line:    ln.No,
			})
		}
		if activeIndexZeroRe.MatchString(ln.Text) {
			out = append(out, RuleViolation{
				RuleID:  "LNC-001b",
				Message: "require(this.activeInputIndex == 0) is forbidden — not a security guard",
				Line:    ln.No,
			})
		}
	}

	for _, fn := range functionBodies(code) {
		guarded := map[int]bool{}
		for _, m := range lengthGuardRe.FindAllStringSubmatch(fn.Body, -1) {
			if n, err := strconv.Atoi(m[2]); err == nil {
				guarded[n] = true // both == and >= guarantee at least n outputs
			}
		}
		for _, loc := range outputIndexRe.FindAllStringSubmatchIndex(fn.Body, -1) {
			idx, _ := strconv.Atoi(fn.Body[loc[2]:loc[3]])
			safe := false
			for g := range guarded {
				if g > idx {
					safe = true
					break
				}
			}
			if !safe {
				out = append(out, RuleViolation{
					RuleID: "LNC-001c",
					Message: fmt.Sprintf("tx.outputs[%d] accessed but no guard ensures tx.outputs.length >= %d in function '%s'",
						idx, idx+1, fn.Name),
					Line: fn.Start + strings.Count(fn.Body[:loc[0]], "\n"),
				})
			}
		}
	}
	return out
}

var declRe = regexp.MustCompile(`(?m)^\s*(?:int|bool|bytes\d*|pubkey|sig)(?:\[\])?\s+(\w+)\s*=`)

// checkUnusedVariables is LNC-002: a declared local referenced only at its
// own declaration site.
func checkUnusedVariables(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, fn := range functionBodies(code) {
		for _, loc := range declRe.FindAllStringSubmatchIndex(fn.Body, -1) {
			name := fn.Body[loc[2]:loc[3]]
			uses := len(regexp.MustCompile(`\b`+regexp.QuoteMeta(name)+`\b`).FindAllString(fn.Body, -1))
			if uses <= 1 {
				out = append(out, RuleViolation{
					RuleID:  "LNC-002",
					Message: fmt.Sprintf("Unused variable '%s' declared but never referenced", name),
					Line:    fn.Start + strings.Count(fn.Body[:loc[0]], "\n"),
				})
			}
		}
	}
	return out
}

var (
	outputCountEqRe = regexp.MustCompile(`require\s*\(\s*tx\.outputs\.length\s*==`)
	directAnchorRe  = regexp.MustCompile(`require\s*\(\s*tx\.outputs\[\d+\]\.value\s*==\s*tx\.inputs\[this\.activeInputIndex\]\.value\s*\)`)
	sumAnchorRe     = regexp.MustCompile(`require\s*\(\s*tx\.outputs\[\d+\]\.value\s*\+\s*tx\.outputs\[\d+\]\.value\s*==\s*tx\.inputs\[this\.activeInputIndex\]\.value\s*\)`)
)

// checkValueAnchoring is LNC-003: covenant-grade functions that guard the
// output count must also anchor at least one output value to the active
// input's value, directly or as a two-output sum.
func checkValueAnchoring(code string, mode Mode) []RuleViolation {
	if mode.anchoringSkipped() {
		return nil
	}
	var out []RuleViolation
	for _, fn := range functionBodies(code) {
		if !outputCountEqRe.MatchString(fn.Body) {
			continue
		}
		if directAnchorRe.MatchString(fn.Body) || sumAnchorRe.MatchString(fn.Body) {
			continue
		}
		out = append(out, RuleViolation{
			RuleID: "LNC-003",
			Message: fmt.Sprintf("Function '%s' guards output count but has no value anchor: require(tx.outputs[N].value == tx.inputs[this.activeInputIndex].value)",
				fn.Name),
			Line: fn.Start,
		})
	}
	return out
}

// checkFileScopeOutputs is LNC-004: tx.outputs indexed outside any function
// body, where no length guard can exist.
func checkFileScopeOutputs(code string, _ Mode) []RuleViolation {
	inside := map[int]bool{}
	for _, fn := range functionBodies(code) {
		for off := 0; off <= strings.Count(fn.Body, "\n")+1; off++ {
			inside[fn.Start+off] = true
		}
	}
	var out []RuleViolation
	for _, ln := range numberedLines(code) {
		if inside[ln.No] {
			continue
		}
		if outputIndexRe.MatchString(ln.Text) {
			out = append(out, RuleViolation{
				RuleID:  "LNC-004",
				Message: "tx.outputs indexed outside a function body — no length guard possible",
				Line:    ln.No,
			})
		}
	}
	return out
}

var (
	valueSubRe = regexp.MustCompile(`(?:\.value|inputValue|input_value)\s*-`)
	feeVarRe   = regexp.MustCompile(`(?i)-\s*(?:fee|miner_?fee|tx_?fee|satoshis_?fee)\b`)
)

// checkFeeArithmetic is LNC-005: implicit fee math.
func checkFeeArithmetic(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, ln := range numberedLines(code) {
		if valueSubRe.MatchString(ln.Text) {
			out = append(out, RuleViolation{
				RuleID:  "LNC-005",
				Message: "Implicit fee arithmetic detected. Do NOT subtract fees from value. Use a named 'fee' constructor param or fixed output amounts.",
				Line:    ln.No,
			})
		}
		if feeVarRe.MatchString(ln.Text) {
			out = append(out, RuleViolation{
				RuleID:  "LNC-005",
				Message: "Fee variable subtraction detected — forbidden. Use exact output values.",
				Line:    ln.No,
			})
		}
	}
	return out
}

// checkWrongSelfRef is LNC-006: this.lockingBytecode does not exist; the
// self reference is this.activeBytecode.
func checkWrongSelfRef(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, ln := range numberedLines(code) {
		if strings.Contains(ln.Text, "this.lockingBytecode") {
			out = append(out, RuleViolation{
				RuleID:  "LNC-006",
				Message: "this.lockingBytecode does NOT exist in CashScript ^0.13.0. Use this.activeBytecode instead.",
				Line:    ln.No,
			})
		}
	}
	return out
}

var deprecatedPatterns = []struct {
	re  *regexp.Regexp
	msg string
}{
	{regexp.MustCompile(`tx\.inputs\[i\]\.time\b`), "tx.inputs[i].time — does not exist; use tx.time for CLTV"},
	{regexp.MustCompile(`tx\.locktime\b`), "tx.locktime — deprecated; use tx.time (CLTV) or tx.age (CSV)"},
	{regexp.MustCompile(`\bcheckDataSig\b`), "checkDataSig — removed in ^0.13.0"},
	{regexp.MustCompile(`new\s+Sig\s*\(`), "new Sig(...) constructor — removed in ^0.13.0"},
}

// checkDeprecated is LNC-007: 0.12.x patterns that break 0.13.0.
func checkDeprecated(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, ln := range numberedLines(code) {
		for _, dep := range deprecatedPatterns {
			if dep.re.MatchString(ln.Text) {
				out = append(out, RuleViolation{
					RuleID:  "LNC-007",
					Message: "Deprecated 0.12.x pattern: " + dep.msg,
					Line:    ln.No,
				})
			}
		}
	}
	return out
}

var (
	requireCondRe        = regexp.MustCompile(`require\s*\(([^)]*)\)`)
	timelockStandaloneRe = regexp.MustCompile(`^\s*tx\.(time|age)\s*>=\s*\w+\s*$`)
)

// checkTimelockStandalone is LNC-010: tx.time / tx.age may only appear as a
// standalone require(tx.time >= X), never chained or nested.
func checkTimelockStandalone(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, fn := range functionBodies(code) {
		for _, loc := range requireCondRe.FindAllStringSubmatchIndex(fn.Body, -1) {
			inner := fn.Body[loc[2]:loc[3]]
			if !strings.Contains(inner, "tx.time") && !strings.Contains(inner, "tx.age") {
				continue
			}
			if !timelockStandaloneRe.MatchString(inner) {
				out = append(out, RuleViolation{
					RuleID:  "LNC-010",
					Message: "tx.time / tx.age must be used only as standalone require(tx.time >= X); not chained or nested.",
					Line:    fn.Start + strings.Count(fn.Body[:loc[0]], "\n"),
				})
			}
		}
	}
	return out
}

var lintDivisionRe = regexp.MustCompile(`\b(\w+)\s*/\s*(\w+)\b`)

// checkDivisionGuard is LNC-011: a division needs require(divisor > 0) in
// the same function body. Literal divisors are exempt.
func checkDivisionGuard(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, fn := range functionBodies(code) {
		clean := regexp.MustCompile(`//.*`).ReplaceAllString(fn.Body, "")
		for _, loc := range lintDivisionRe.FindAllStringSubmatchIndex(clean, -1) {
			divisor := clean[loc[4]:loc[5]]
			if _, err := strconv.Atoi(divisor); err == nil {
				continue
			}
			guard := regexp.MustCompile(`require\s*\(\s*` + regexp.QuoteMeta(divisor) + `\s*>\s*0\s*\)`)
			if guard.MatchString(clean) {
				continue
			}
			out = append(out, RuleViolation{
				RuleID:  "LNC-011",
				Message: fmt.Sprintf("Division by '%s' without require(%s > 0) guard.", divisor, divisor),
				Line:    fn.Start + strings.Count(clean[:loc[0]], "\n"),
			})
		}
	}
	return out
}

var newBytecodeRe = regexp.MustCompile(`LockingBytecodeP2SH|hash160\s*\(|bytes\s*concat\s*\(|new\s+bytes`)

// checkFrozenState is LNC-012, warning only: a self-continuing stateful
// contract that shows no evidence of constructing new state.
func checkFrozenState(code string, mode Mode) []RuleViolation {
	if !mode.frozenStateApplies() {
		return nil
	}
	if !selfRefRe.MatchString(code) {
		return nil // not self-continuing; LNC-008 owns that case
	}
	if newBytecodeRe.MatchString(code) {
		return nil
	}
	return []RuleViolation{{
		RuleID: "LNC-012",
		Message: "Stateful contract perpetuates itself via this.activeBytecode but does not mutate constructor state (no new locking bytecode construction detected). " +
			"This is a structural covenant, not a true state machine. If mutation is intended, construct a new locking bytecode with updated args.",
		Line:     0,
		Severity: "warning",
	}}
}

var (
	outputSelfAnchorRe = regexp.MustCompile(`tx\.outputs\[.*?\]\.lockingBytecode\s*==\s*this\.activeBytecode`)
	inputSelfAnchorRe  = regexp.MustCompile(`tx\.inputs\[.*?\]\.lockingBytecode\s*==\s*this\.activeBytecode`)
	touchesOutputsRe   = regexp.MustCompile(`tx\.outputs\b`)
	burnNameRe         = regexp.MustCompile(`(?i)\bburn\w*\b`)
)

// checkSelfAnchor is LNC-008, the covenant self-anchor mode matrix:
// exit modes forbid this.activeBytecode, continuation modes require it, and
// stateless modes skip the rule entirely. Unknown modes are inferred from
// token/self references.
func checkSelfAnchor(code string, mode Mode) []RuleViolation {
	switch mode.selfAnchor() {
	case selfAnchorForbid:
		if selfRefRe.MatchString(code) {
			return []RuleViolation{{
				RuleID: "LNC-008",
				Message: fmt.Sprintf("Contract mode '%s' MUST NOT use this.activeBytecode. This mode implies funds exit the contract. Self-anchoring would permanently trap funds.",
					mode),
				Line: 0,
			}}
		}
		return nil
	case selfAnchorSkip:
		return nil
	case selfAnchorInfer:
		if !tokenRefRe.MatchString(code) && !selfRefRe.MatchString(code) {
			return nil // no covenant features detected
		}
	}

	var out []RuleViolation
	for _, fn := range functionBodies(code) {
		// token-mode burn paths legitimately exit the covenant
		if mode == ModeToken && burnNameRe.MatchString(fn.Name) {
			continue
		}
		if !touchesOutputsRe.MatchString(fn.Body) && !tokenRefRe.MatchString(fn.Body) {
			continue
		}
		if outputSelfAnchorRe.MatchString(fn.Body) || inputSelfAnchorRe.MatchString(fn.Body) {
			continue
		}
		out = append(out, RuleViolation{
			RuleID: "LNC-008",
			Message: fmt.Sprintf("Covenant function '%s' (mode=%s) has no self-anchor: require(tx.outputs[N].lockingBytecode == this.activeBytecode). Stateful/token contracts must perpetuate themselves.",
				fn.Name, mode),
			Line: fn.Start,
		})
	}
	return out
}

var (
	mintIntentRe   = regexp.MustCompile(`(?i)\bmint\w*\b`)
	mintSigCheckRe = regexp.MustCompile(`checkSig\s*\([^,]+,\s*mintAuthority\s*\)`)
)

// checkMintAuthority is LNC-013: mint paths in token contracts must be
// gated by a mintAuthority signature.
func checkMintAuthority(code string, mode Mode) []RuleViolation {
	if !mode.mintAuthorityApplies() || !mintIntentRe.MatchString(code) {
		return nil
	}
	hasParam := strings.Contains(code, "mintAuthority")
	var out []RuleViolation
	for _, fn := range functionBodies(code) {
		if !mintIntentRe.MatchString(fn.Name) {
			continue
		}
		if hasParam && mintSigCheckRe.MatchString(fn.Body) {
			continue
		}
		out = append(out, RuleViolation{
			RuleID: "LNC-013",
			Message: fmt.Sprintf("Mint function '%s' does not require mintAuthority authorization. Add: (1) 'pubkey mintAuthority' as a constructor param, (2) require(checkSig(mintSig, mintAuthority)) in the mint function.",
				fn.Name),
			Line: fn.Start,
		})
	}
	return out
}

var (
	categoryRefRe = regexp.MustCompile(`\.tokenCategory\b`)
	amountRefRe   = regexp.MustCompile(`\.tokenAmount\b`)
)

// checkTokenPair is LNC-014: tokenCategory and tokenAmount are validated as
// a pair, per function.
func checkTokenPair(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, fn := range functionBodies(code) {
		hasCategory := categoryRefRe.MatchString(fn.Body)
		hasAmount := amountRefRe.MatchString(fn.Body)
		switch {
		case hasCategory && !hasAmount:
			out = append(out, RuleViolation{
				RuleID: "LNC-014",
				Message: fmt.Sprintf("Function '%s' validates tokenCategory but not tokenAmount. Add: require(tx.outputs[0].tokenAmount == tx.inputs[this.activeInputIndex].tokenAmount); to prevent silent token burns.",
					fn.Name),
				Line: fn.Start,
			})
		case hasAmount && !hasCategory:
			out = append(out, RuleViolation{
				RuleID: "LNC-014",
				Message: fmt.Sprintf("Function '%s' validates tokenAmount but not tokenCategory. Add: require(tx.outputs[0].tokenCategory == tx.inputs[this.activeInputIndex].tokenCategory); to prevent category confusion attacks.",
					fn.Name),
				Line: fn.Start,
			})
		}
	}
	return out
}

var forbiddenSyntax = []struct {
	re  *regexp.Regexp
	msg string
}{
	{regexp.MustCompile(`\b\w+\s*\?\s*[^:]+:\s*[^;{}\n]+`), "Ternary operator (?:) is NOT supported in CashScript. Use require() instead."},
	{regexp.MustCompile(`[^!=<>?]\?[^?]`), "Ternary operator '?' is NOT supported in CashScript. Use require() instead."},
	{regexp.MustCompile(`[^=!<>]\+=`), "+= is NOT supported. CashScript has no mutable variables. Use: int y = x + n;"},
	{regexp.MustCompile(`[^=!<>]-=`), "-= is NOT supported. CashScript has no mutable variables. Use: int y = x - n;"},
	{regexp.MustCompile(`[^=!<>]\*=`), "*= is NOT supported. CashScript has no mutable variables."},
	{regexp.MustCompile(`[^=!<>]/=`), "/= is NOT supported. CashScript has no mutable variables."},
	{regexp.MustCompile(`\+\+`), "++ is NOT supported. CashScript has no mutation. Use: int y = x + 1;"},
	{regexp.MustCompile(`[^-]--[^-]`), "-- is NOT supported. CashScript has no mutation. Use: int y = x - 1;"},
	{regexp.MustCompile(`\bfor\s*\(`), "for(...) loops are NOT supported in CashScript. Unroll manually."},
	{regexp.MustCompile(`\bwhile\s*\(`), "while(...) loops are NOT supported in CashScript."},
	{regexp.MustCompile(`\bswitch\s*\(`), "switch(...) is NOT supported in CashScript."},
	{regexp.MustCompile(`\breturn\b`), "return is NOT valid in CashScript functions. Use only require() statements."},
	{regexp.MustCompile(`\bif\s*\(`), "if(...) is NOT supported in CashScript. Use require() for all conditionals."},
	{regexp.MustCompile(`\belse\b`), "else is NOT supported in CashScript. Use require() for all conditionals."},
}

// checkForbiddenSyntax is LNC-009: constructs valid in account-model
// languages that the target language rejects. Caught here to turn a compile
// failure into a lint retry.
func checkForbiddenSyntax(code string, _ Mode) []RuleViolation {
	var out []RuleViolation
	for _, ln := range numberedLines(code) {
		if strings.HasPrefix(strings.TrimSpace(ln.Text), "//") {
			continue
		}
		codePart := stripLineComment(ln.Text)
		for _, f := range forbiddenSyntax {
			if f.re.MatchString(codePart) {
				out = append(out, RuleViolation{
					RuleID:  "LNC-009",
					Message: f.msg,
					Line:    ln.No,
				})
			}
		}
	}
	return out
}
