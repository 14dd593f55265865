package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal/lint"
	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// RuleDoc is one anti-pattern document from the knowledge base. ID matches
// the detector rule id (for example implicit_output_ordering.cash).
type RuleDoc struct {
	ID       string
	Severity string
	Body     string
}

// Base loads the on-disk knowledge directory once and serves prompt context.
type Base struct {
	rules      map[string]RuleDoc
	order      []string
	primitives string
}

// Load reads knowledge/antipatterns/*.md plus knowledge/primitives.md.
// A missing directory yields an empty base, not an error: generation still
// works, just with weaker prompts.
func Load(kbPath string) *Base {
	b := &Base{rules: make(map[string]RuleDoc)}

	antipatternDir := filepath.Join(kbPath, "antipatterns")
	entries, err := os.ReadDir(antipatternDir)
	if err != nil {
		logger.Warn("Knowledge base unavailable at %s: %v", antipatternDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(antipatternDir, entry.Name()))
		if err != nil {
			logger.Warn("Failed to load anti-pattern doc %s: %v", entry.Name(), err)
			continue
		}
		doc := parseDoc(string(data))
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(entry.Name(), ".md")
		}
		b.rules[doc.ID] = doc
	}

	for id := range b.rules {
		b.order = append(b.order, id)
	}
	sort.Strings(b.order)

	if data, err := os.ReadFile(filepath.Join(kbPath, "primitives.md")); err == nil {
		b.primitives = string(data)
	}

	if len(b.rules) > 0 {
		logger.Info("Loaded %d anti-pattern docs from %s", len(b.rules), antipatternDir)
	}
	return b
}

// parseDoc splits a leading `---` front-matter block with id:/severity:
// keys from the markdown body.
func parseDoc(raw string) RuleDoc {
	doc := RuleDoc{Body: strings.TrimSpace(raw)}
	rest, ok := strings.CutPrefix(raw, "---\n")
	if !ok {
		return doc
	}
	head, body, ok := strings.Cut(rest, "\n---")
	if !ok {
		return doc
	}
	for _, line := range strings.Split(head, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "id":
			doc.ID = strings.TrimSpace(value)
		case "severity":
			doc.Severity = strings.ToUpper(strings.TrimSpace(value))
		}
	}
	doc.Body = strings.TrimSpace(body)
	return doc
}

// RuleDoc returns the document for a rule id, if the base has one.
func (b *Base) RuleDoc(ruleID string) (RuleDoc, bool) {
	doc, ok := b.rules[ruleID]
	return doc, ok
}

// Primitives returns the validation-primitive reference sheet.
func (b *Base) Primitives() string {
	return b.primitives
}

// Context renders the constraint block injected into generation prompts.
// The full anti-pattern registry always applies; the mode only picks which
// documents lead.
func (b *Base) Context(mode lint.Mode) string {
	if len(b.rules) == 0 && b.primitives == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Security Constraints\n\n")

	leads := leadRules(mode)
	emitted := map[string]bool{}
	for _, id := range leads {
		if doc, ok := b.rules[id]; ok {
			writeRule(&sb, doc)
			emitted[id] = true
		}
	}
	for _, id := range b.order {
		if !emitted[id] {
			writeRule(&sb, b.rules[id])
		}
	}

	if b.primitives != "" {
		sb.WriteString("\n## Validation Primitives\n\n")
		sb.WriteString(b.primitives)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeRule(sb *strings.Builder, doc RuleDoc) {
	severity := doc.Severity
	if severity == "" {
		severity = "HIGH"
	}
	fmt.Fprintf(sb, "**[%s]** (%s):\n%s\n\n", doc.ID, severity, doc.Body)
}

// leadRules orders the documents most likely to bite for a contract mode.
func leadRules(mode lint.Mode) []string {
	switch mode {
	case lint.ModeToken, lint.ModeMinting:
		return []string{"token_pair_incomplete.cash", "unbounded_mint.cash", "missing_output_limit.cash"}
	case lint.ModeStateful, lint.ModeCovenant, lint.ModeVault, lint.ModeVesting:
		return []string{"covenant_continuation.cash", "implicit_output_ordering.cash", "stateful_without_state_check.cash"}
	case lint.ModeMultisig, lint.ModeMultisigSimple:
		return []string{"signature_reuse.cash", "multisig_distinctness_flaw.cash"}
	case lint.ModeTimelock, lint.ModeEscrow:
		return []string{"time_validation_error.cash", "tautological_guard.cash"}
	default:
		return []string{"implicit_output_ordering.cash", "missing_output_limit.cash", "missing_value_enforcement.cash"}
	}
}
