package astparser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	contractRe   = regexp.MustCompile(`contract\s+(\w+)\s*\(([^)]*)\)`)
	functionRe   = regexp.MustCompile(`function\s+(\w+)\s*\([^)]*\)\s*\{`)
	outputRefRe  = regexp.MustCompile(`tx\.outputs\[(\d+)\]\.(\w+)`)
	requireRe    = regexp.MustCompile(`require\s*\(`)
	lockingIdxRe = regexp.MustCompile(`tx\.outputs\[(\d+)\]\.lockingBytecode`)
	valueIdxRe   = regexp.MustCompile(`tx\.outputs\[(\d+)\]\.value`)
	tokenCatRe   = regexp.MustCompile(`tx\.outputs\[(\d+)\]\.tokenCategory`)
	tokenAmtRe   = regexp.MustCompile(`tx\.outputs\[(\d+)\]\.tokenAmount`)
	divisionRe   = regexp.MustCompile(`([\w.\[\]]+)\s*([/%])\s*([\w.\[\]]+)`)
	checkSigRe   = regexp.MustCompile(`checkSig\s*\(\s*(\w+)\s*,\s*(\w+)\s*\)`)

	comparisonOps = []string{"==", "!=", ">=", "<=", ">", "<"}
)

// Parse extracts a best-effort fact set from one contract source string.
// It never fails: unrecognized fragments simply contribute no facts.
func Parse(source string) *Facts {
	f := &Facts{source: source}

	if m := contractRe.FindStringSubmatch(source); m != nil {
		f.ContractName = m[1]
		f.ConstructorParams = parseParams(m[2])
	}

	f.Functions = extractFunctions(source)

	for _, fn := range f.Functions {
		base := fn.Start
		for _, loc := range outputRefRe.FindAllStringSubmatchIndex(fn.Body, -1) {
			idx, _ := strconv.Atoi(fn.Body[loc[2]:loc[3]])
			f.OutputRefs = append(f.OutputRefs, OutputRef{
				Index:    idx,
				Property: fn.Body[loc[4]:loc[5]],
				Function: fn.Name,
				Line:     base + strings.Count(fn.Body[:loc[0]], "\n"),
			})
		}
		f.Validations = append(f.Validations, extractValidations(fn)...)
		f.ArithmeticOps = append(f.ArithmeticOps, extractArithmetic(fn)...)
		for _, m := range checkSigRe.FindAllStringSubmatch(fn.Body, -1) {
			f.CheckSigCalls = append(f.CheckSigCalls, CheckSigCall{
				Sig: m[1], PubKey: m[2], Function: fn.Name,
			})
		}
	}

	lower := strings.ToLower(source)
	f.IsStateful = strings.Contains(source, "hash256(") && strings.Contains(lower, "state")

	return f
}

func parseParams(raw string) []Param {
	var out []Param
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) < 2 {
			continue
		}
		out = append(out, Param{Type: fields[0], Name: fields[len(fields)-1]})
	}
	return out
}

// extractFunctions isolates each function body with a brace-depth scan from
// the opening brace matched by functionRe.
func extractFunctions(source string) []Function {
	var out []Function
	for _, loc := range functionRe.FindAllStringSubmatchIndex(source, -1) {
		name := source[loc[2]:loc[3]]
		open := loc[1] - 1 // position of the matched '{'
		depth := 0
		end := -1
		for i := open; i < len(source); i++ {
			switch source[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = i
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			// unbalanced body, skip the fragment
			continue
		}
		out = append(out, Function{
			Name:  name,
			Body:  source[open+1 : end],
			Start: 1 + strings.Count(source[:loc[0]], "\n"),
		})
	}
	return out
}

func extractValidations(fn Function) []Validation {
	var out []Validation
	for _, loc := range requireRe.FindAllStringIndex(fn.Body, -1) {
		cond, ok := balancedParen(fn.Body, loc[1]-1)
		if !ok {
			continue
		}
		v := Validation{
			Raw:      cond,
			Function: fn.Name,
			Line:     fn.Start + strings.Count(fn.Body[:loc[0]], "\n"),
		}
		v.ValidatesLockingBytecode = strings.Contains(cond, "lockingBytecode") && strings.Contains(cond, "==")
		v.ValidatesOutputCount = strings.Contains(cond, "tx.outputs.length")
		v.ValidatesOwnPosition = strings.Contains(cond, "this.activeInputIndex") && containsComparison(cond)
		v.IsTimeCheck = strings.Contains(cond, "tx.time") || strings.Contains(cond, "tx.age")
		v.LockingIndex = firstIndex(lockingIdxRe, cond)
		v.ValueIndex = firstIndex(valueIdxRe, cond)
		v.TokenCategoryIndex = firstIndex(tokenCatRe, cond)
		v.TokenAmountIndex = firstIndex(tokenAmtRe, cond)
		v.Comparisons = parseComparisons(cond)
		out = append(out, v)
	}
	return out
}

// balancedParen returns the text inside the paren group opening at pos.
func balancedParen(s string, open int) (string, bool) {
	if open < 0 || open >= len(s) || s[open] != '(' {
		return "", false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[open+1 : i]), true
			}
		}
	}
	return "", false
}

func containsComparison(cond string) bool {
	for _, op := range comparisonOps {
		if strings.Contains(cond, op) {
			return true
		}
	}
	return false
}

func firstIndex(re *regexp.Regexp, cond string) *int {
	m := re.FindStringSubmatch(cond)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// parseComparisons splits a condition on boolean connectors and decomposes
// each atom around its comparison operator. Atoms without one are dropped.
func parseComparisons(cond string) []Comparison {
	var out []Comparison
	atoms := regexp.MustCompile(`&&|\|\|`).Split(cond, -1)
	for _, atom := range atoms {
		atom = strings.TrimSpace(atom)
		for _, op := range comparisonOps {
			pos := strings.Index(atom, op)
			if pos < 0 {
				continue
			}
			// skip ">" inside ">=" etc by requiring the longest op first;
			// comparisonOps is ordered two-char before one-char
			left := strings.TrimSpace(atom[:pos])
			right := strings.TrimSpace(atom[pos+len(op):])
			if left != "" && right != "" {
				out = append(out, Comparison{Left: left, Op: op, Right: right})
			}
			break
		}
	}
	return out
}

func extractArithmetic(fn Function) []ArithmeticOp {
	var out []ArithmeticOp
	for n, line := range strings.Split(fn.Body, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		for _, m := range divisionRe.FindAllStringSubmatch(line, -1) {
			op := "divide"
			if m[2] == "%" {
				op = "modulo"
			}
			out = append(out, ArithmeticOp{
				Op:       op,
				Divisor:  m[3],
				Function: fn.Name,
				Line:     fn.Start + n,
			})
		}
	}
	return out
}
