package compiler

import (
	"regexp"
	"strconv"
	"strings"
)

// ErrorType buckets cashc failures so the engine can pick a repair strategy.
type ErrorType string

const (
	ParseError            ErrorType = "ParseError"
	TypeMismatchError     ErrorType = "TypeMismatchError"
	UnusedVariableError   ErrorType = "UnusedVariableError"
	ExtraneousInputError  ErrorType = "ExtraneousInputError"
	TimeoutError          ErrorType = "TimeoutError"
	CompilerNotFoundError ErrorType = "CompilerNotFoundError"
	InternalError         ErrorType = "InternalError"
	UnknownError          ErrorType = "UnknownError"
)

// CompileError is the classified form of a cashc stderr dump.
type CompileError struct {
	Type ErrorType
	Line int
	// Token is the identifier the message singles out, when one is named.
	Token string
	Hint  string
	Raw   string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return string(e.Type) + " at line " + strconv.Itoa(e.Line) + ": " + e.Raw
	}
	return string(e.Type) + ": " + e.Raw
}

var (
	lineRe       = regexp.MustCompile(`(?i)line[:\s]+(\d+)`)
	locRe        = regexp.MustCompile(`:(\d+):\d+`)
	unusedRe     = regexp.MustCompile(`[Uu]nused variable[:\s]+'?(\w+)'?`)
	mismatchRe   = regexp.MustCompile(`(?i)type\s+'?([\w\[\]]+)'?\s+(?:is not assignable to|does not match|cannot be (?:cast|implicitly converted))`)
	extraneousRe = regexp.MustCompile(`(?i)(mismatched input|extraneous input|no viable alternative)\s+'([^']*)'`)
)

// Classify turns raw cashc stderr into a CompileError with a repair hint.
func Classify(stderr string) *CompileError {
	raw := strings.TrimSpace(stderr)
	ce := &CompileError{Type: UnknownError, Raw: raw}
	if raw == "" {
		ce.Raw = "unknown compiler error"
		return ce
	}

	if m := lineRe.FindStringSubmatch(raw); m != nil {
		ce.Line, _ = strconv.Atoi(m[1])
	} else if m := locRe.FindStringSubmatch(raw); m != nil {
		ce.Line, _ = strconv.Atoi(m[1])
	}

	switch {
	case unusedRe.MatchString(raw):
		ce.Type = UnusedVariableError
		ce.Token = unusedRe.FindStringSubmatch(raw)[1]
		ce.Hint = "remove the declaration of '" + ce.Token + "' or use it in a require()"
	case extraneousRe.MatchString(raw):
		m := extraneousRe.FindStringSubmatch(raw)
		ce.Token = m[2]
		if strings.HasPrefix(m[1], "extraneous") {
			ce.Type = ExtraneousInputError
			ce.Hint = "delete the stray token '" + ce.Token + "'"
		} else {
			ce.Type = ParseError
			ce.Hint = "fix the syntax around '" + ce.Token + "'"
		}
	case mismatchRe.MatchString(raw):
		ce.Type = TypeMismatchError
		ce.Token = mismatchRe.FindStringSubmatch(raw)[1]
		ce.Hint = "adjust the operand types; CashScript does not convert implicitly"
	case strings.Contains(raw, "ParseError") || strings.Contains(strings.ToLower(raw), "syntax error"):
		ce.Type = ParseError
		ce.Hint = "fix the syntax error reported by the compiler"
	case strings.Contains(raw, "Internal compiler error") || strings.Contains(raw, "TypeError: Cannot read"):
		ce.Type = InternalError
		ce.Hint = "simplify the construct that crashed the compiler"
	}
	return ce
}
