package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/CovenantBits/Covforge/src/internal"
)

// PromptVariables covers every field the .tmpl files may reference.
type PromptVariables struct {
	Intent        string
	SecurityLevel string
	Mode          string

	IntentModelJSON  string
	KnowledgeContext string
	ViolationContext string
	DistinctnessRule string

	Code          string
	CompilerError string
	CompilerHint  string

	IssueTitle       string
	IssueDescription string
	IssueRuleID      string
	RuleDoc          string
	Escalated        bool
}

var (
	templateCacheMu sync.Mutex
	templateCache   = map[string]*template.Template{}
)

func templateKey(templateContent string) string {
	sum := sha256.Sum256([]byte(templateContent))
	return hex.EncodeToString(sum[:])
}

// BuildPrompt renders a template with the given variables. Parse failures
// return the error inline rather than an empty prompt so a bad template is
// visible in logs instead of silently degrading the oracle call.
func BuildPrompt(templateContent string, variables interface{}) string {
	key := templateKey(templateContent)
	templateCacheMu.Lock()
	tmpl := templateCache[key]
	templateCacheMu.Unlock()

	if tmpl == nil {
		parsed, err := template.New("prompt").Parse(templateContent)
		if err != nil {
			return fmt.Sprintf("failed to parse template: %v\nRaw Template:\n%s", err, templateContent)
		}

		templateCacheMu.Lock()
		if templateCache[key] == nil {
			if len(templateCache) >= 64 {
				templateCache = map[string]*template.Template{}
			}
			templateCache[key] = parsed
			tmpl = parsed
		} else {
			tmpl = templateCache[key]
		}
		templateCacheMu.Unlock()
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, variables); err != nil {
		return fmt.Sprintf("failed to execute template: %v\nRaw Template:\n%s", err, templateContent)
	}

	return result.String()
}

// BuildViolationContext renders prior toll-gate violations into the
// retry prompt: exact mandatory patterns first, then the violation list,
// then targeted rule documentation.
func BuildViolationContext(violations []internal.Violation, ruleDoc func(ruleID string) string) string {
	if len(violations) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("### THE FOLLOWING VIOLATIONS WERE DETECTED (MUST BE FIXED):\n\n")

	sb.WriteString("#### MANDATORY STRUCTURAL CONSTRAINTS\n")
	sb.WriteString("You MUST incorporate these exact patterns into your code to pass validation:\n")
	seen := map[string]bool{}
	for _, v := range violations {
		rule := strings.TrimSuffix(v.Rule, ".cash")
		if seen[rule] {
			continue
		}
		seen[rule] = true
		fmt.Fprintf(&sb, "- [%s]: `%s`\n", strings.ToUpper(rule), DeriveMandatoryPattern(rule))
	}
	sb.WriteString("\n#### VIOLATION DETAILS\n")
	for i, v := range violations {
		fmt.Fprintf(&sb, "%d. [%s] %s: %s\n", i+1, v.Severity, v.Rule, v.Reason)
		if v.Exploit != "" {
			fmt.Fprintf(&sb, "   REASON: %s\n", v.Exploit)
		}
		sb.WriteString("\n")
	}

	if ruleDoc != nil {
		var docs []string
		for rule := range seen {
			if doc := ruleDoc(rule + ".cash"); doc != "" {
				docs = append(docs, truncateLines(doc, 50), "---")
			}
		}
		if len(docs) > 0 {
			sb.WriteString("#### TARGETED ANTI-PATTERN DOCUMENTATION\n")
			sb.WriteString(strings.Join(docs, "\n"))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// BuildLintContext renders lint violations for a redraft prompt.
func BuildLintContext(formatted string) string {
	if formatted == "" {
		return ""
	}
	return "### THE FOLLOWING LINT VIOLATIONS WERE DETECTED (MUST BE FIXED):\n\n" + formatted
}

func truncateLines(s string, maxLines int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "\n") + "\n// ... (truncated for context window)"
}

// DeriveMandatoryPattern maps a rule id (without .cash) to the structural
// pattern a retry draft must contain.
func DeriveMandatoryPattern(rule string) string {
	patterns := map[string]string{
		"implicit_output_ordering":     "require(tx.outputs[N].lockingBytecode == target); // FIRST check for index N",
		"missing_output_limit":         "require(tx.outputs.length == FIXED_COUNT);",
		"unvalidated_position":         "require(tx.outputs[0].value == tx.inputs[this.activeInputIndex].value);",
		"fee_assumption_violation":     "// REMOVE all inputValue - outputValue patterns",
		"evm_hallucination":            "// REMOVE all msg.sender, mapping, emit, and payable terms",
		"empty_function_body":          "require(checkSig(sig, pk)); // Add at least one constraint",
		"semantic_type_mismatch":       "require(tx.outputs[N].lockingBytecode == bytes(target)); // No bytes32/NO_TOKEN",
		"multisig_distinctness_flaw":   "require(pk1 != pk2); // Enforce distinctness for all pubkey pairs",
		"missing_value_enforcement":    "require(tx.outputs[N].value == amount); OR require(tx.outputs.length == 1);",
		"weak_output_count_limit":      "require(tx.outputs.length == 1); // Use exact match instead of >=",
		"missing_output_anchor":        "require(tx.outputs[0].lockingBytecode == target_script);",
		"time_validation_error":        "require(tx.time >= deadline); // NEVER use >",
		"division_by_zero":             "require(divisor > 0); a / divisor;",
		"token_pair_incomplete":        "require(tx.outputs[N].tokenCategory == cat); require(tx.outputs[N].tokenAmount == amt);",
		"covenant_continuation":        "require(tx.outputs[0].lockingBytecode == new LockingBytecodeP2SH32(hash256(this.activeBytecode)));",
		"signature_reuse":              "// Use one distinct sig parameter per checkSig call",
		"unbounded_mint":               "require(tx.outputs[N].tokenAmount <= cap);",
		"tautological_guard":           "// REMOVE require(x == x) style guards",
		"stateful_without_state_check": "require(hash256(newState) == expectedStateHash);",
	}
	if p, ok := patterns[rule]; ok {
		return p
	}
	return "// Review anti-pattern docs for structural requirements."
}

// DeriveFixHint maps a rule id to a one-line remediation for audit output.
func DeriveFixHint(rule string) string {
	hints := map[string]string{
		"implicit_output_ordering":     "Validate lockingBytecode on every tx.outputs[N] before accessing other properties.",
		"missing_output_limit":         "Add require(tx.outputs.length == N) in every function.",
		"unvalidated_position":         "Pin the contract's own position via a value anchor against tx.inputs[this.activeInputIndex].",
		"fee_assumption_violation":     "Remove fee calculations. Let the caller specify exact output amounts.",
		"evm_hallucination":            "Remove all Solidity/EVM syntax. Use CashScript constructs only.",
		"empty_function_body":          "Add require() statements enforcing transaction constraints.",
		"semantic_type_mismatch":       "Type mismatch in comparison. Do not compare bytes (lockingBytecode) to bytes32 (tokenCategory/NO_TOKEN).",
		"multisig_distinctness_flaw":   "Multisig pubkeys must be distinct. Add require(pk1 != pk2).",
		"missing_value_enforcement":    "Spending functions must validate output values or use a strict single-output anchor (== 1).",
		"weak_output_count_limit":      "Replace >= with an exact match (==) or add an upper bound for tx.outputs.length.",
		"missing_output_anchor":        "Escrow functions must have a hard output anchor (lockingBytecode or value validation).",
		"time_validation_error":        "Use >= for 'at or after' time checks; > misses the boundary block.",
		"division_by_zero":             "Guard every non-literal divisor with require(divisor > 0) before dividing.",
		"token_pair_incomplete":        "Validate tokenCategory and tokenAmount together for every token output.",
		"covenant_continuation":        "Stateful contracts must pin a continuation output to their own bytecode.",
		"signature_reuse":              "One signature must not authorize multiple distinct keys. Use separate sig parameters.",
		"unbounded_mint":               "Constrain minted tokenAmount in every mint path.",
		"tautological_guard":           "Remove guards that compare an expression to itself.",
		"stateful_without_state_check": "Validate the successor state commitment (hash256/hash160) before continuing.",
	}
	clean := strings.TrimSuffix(rule, ".cash")
	if h, ok := hints[clean]; ok {
		return h
	}
	return "Review the anti-pattern documentation for this rule."
}
