package astparser

// Facts is the flat fact set extracted from one contract source string.
// Built once per Parse call, read-only afterwards.
type Facts struct {
	ContractName      string
	ConstructorParams []Param
	Functions         []Function
	OutputRefs        []OutputRef
	Validations       []Validation
	ArithmeticOps     []ArithmeticOp
	CheckSigCalls     []CheckSigCall
	IsStateful        bool

	source string
}

type Param struct {
	Type string
	Name string
}

type Function struct {
	Name  string
	Body  string
	Start int // line of the function keyword, 1-based
}

// OutputRef records one syntactic access to tx.outputs[index].property.
type OutputRef struct {
	Index    int
	Property string
	Function string
	Line     int
}

// Comparison is one binary comparison split out of a guard condition.
type Comparison struct {
	Left  string
	Op    string
	Right string
}

// Validation is one require(...) guard with derived semantic flags.
type Validation struct {
	Raw      string
	Function string
	Line     int

	ValidatesLockingBytecode bool
	LockingIndex             *int
	ValidatesOutputCount     bool
	ValidatesOwnPosition     bool
	ValueIndex               *int
	TokenCategoryIndex       *int
	TokenAmountIndex         *int
	IsTimeCheck              bool

	Comparisons []Comparison
}

type ArithmeticOp struct {
	Op       string // "divide" | "modulo" | "add" | "multiply"
	Divisor  string
	Function string
	Line     int
}

type CheckSigCall struct {
	Sig      string
	PubKey   string
	Function string
}

// Source returns the raw text the facts were extracted from.
func (f *Facts) Source() string { return f.source }

// FunctionByName returns the named function, if extracted.
func (f *Facts) FunctionByName(name string) *Function {
	for i := range f.Functions {
		if f.Functions[i].Name == name {
			return &f.Functions[i]
		}
	}
	return nil
}

// ValidatesLockingBytecodeFor reports whether any guard in fn pins the
// locking bytecode of exactly output index idx.
func (f *Facts) ValidatesLockingBytecodeFor(fn string, idx int) bool {
	for _, v := range f.Validations {
		if v.Function != fn || !v.ValidatesLockingBytecode {
			continue
		}
		if v.LockingIndex != nil && *v.LockingIndex == idx {
			return true
		}
	}
	return false
}

// HasOutputCountBound reports whether any guard constrains tx.outputs.length.
func (f *Facts) HasOutputCountBound() bool {
	for _, v := range f.Validations {
		if v.ValidatesOutputCount {
			return true
		}
	}
	return false
}

// HasPositionCheck reports whether any guard pins this.activeInputIndex.
func (f *Facts) HasPositionCheck() bool {
	for _, v := range f.Validations {
		if v.ValidatesOwnPosition {
			return true
		}
	}
	return false
}

// GuardCount is the total number of require statements found.
func (f *Facts) GuardCount() int { return len(f.Validations) }

// ValidationsIn returns the guards owned by fn in source order.
func (f *Facts) ValidationsIn(fn string) []Validation {
	var out []Validation
	for _, v := range f.Validations {
		if v.Function == fn {
			out = append(out, v)
		}
	}
	return out
}

// PubKeyParams returns constructor params whose declared type is pubkey.
func (f *Facts) PubKeyParams() []Param {
	var out []Param
	for _, p := range f.ConstructorParams {
		if p.Type == "pubkey" {
			out = append(out, p)
		}
	}
	return out
}
