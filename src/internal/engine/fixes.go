package engine

import (
	"regexp"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal/compiler"
)

// Deterministic compile-error fixes. Each entry handles one structured
// error type; the first applicable rewrite wins. Anything not covered
// falls through to the oracle fix path.

var (
	malformedTimeOpRe = regexp.MustCompile(`(tx\.(?:time|age))\s*=>`)
	byteWidthRe       = regexp.MustCompile(`^bytes\d+$`)
	ternaryRe         = regexp.MustCompile(`\?[^:;\n]+:[^;\n]+`)
)

// ApplyDeterministicFix rewrites code for compile errors with a known
// mechanical repair. Returns the fixed code and whether a rewrite happened.
func ApplyDeterministicFix(code string, cerr *compiler.CompileError) (string, bool) {
	switch cerr.Type {
	case compiler.UnusedVariableError:
		if cerr.Token != "" {
			return stripDeclaration(code, cerr.Token)
		}

	case compiler.ParseError:
		if fixed, ok := balanceBraces(code); ok {
			return fixed, true
		}
		if malformedTimeOpRe.MatchString(code) {
			return malformedTimeOpRe.ReplaceAllString(code, "$1 >="), true
		}

	case compiler.TypeMismatchError:
		// Fixed-width byte params compared against variable-length
		// lockingBytecode: widen the declaration.
		if byteWidthRe.MatchString(cerr.Token) {
			fixed := strings.ReplaceAll(code, cerr.Token+" ", "bytes ")
			if fixed != code {
				return fixed, true
			}
		}

	case compiler.ExtraneousInputError:
		if cerr.Token == "?" || cerr.Token == ":" {
			fixed := ternaryRe.ReplaceAllString(code, "")
			if fixed != code {
				return fixed, true
			}
		}
		if cerr.Token != "" && cerr.Line > 0 {
			return stripTokenOnLine(code, cerr.Token, cerr.Line)
		}
	}

	return code, false
}

// stripDeclaration removes the line declaring an unused variable.
func stripDeclaration(code, varName string) (string, bool) {
	declRe := regexp.MustCompile(`(?m)^\s*\w[\w\[\]]*\s+` + regexp.QuoteMeta(varName) + `\s*=.*?;\s*$`)
	fixed := declRe.ReplaceAllString(code, "")
	if fixed == code {
		return code, false
	}
	return strings.TrimSpace(fixed), true
}

// balanceBraces appends missing closing braces. Only the common truncated
// tail case is worth fixing mechanically.
func balanceBraces(code string) (string, bool) {
	open := strings.Count(code, "{")
	closed := strings.Count(code, "}")
	if open <= closed {
		return code, false
	}
	fixed := strings.TrimRight(code, " \t\n")
	for i := 0; i < open-closed; i++ {
		fixed += "\n}"
	}
	return fixed, true
}

// stripTokenOnLine removes the first occurrence of a stray token on the
// reported line.
func stripTokenOnLine(code, token string, line int) (string, bool) {
	lines := strings.Split(code, "\n")
	if line < 1 || line > len(lines) {
		return code, false
	}
	idx := line - 1
	replaced := strings.Replace(lines[idx], token, "", 1)
	if replaced == lines[idx] {
		return code, false
	}
	lines[idx] = replaced
	return strings.Join(lines, "\n"), true
}
