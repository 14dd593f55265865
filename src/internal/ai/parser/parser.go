package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/CovenantBits/Covforge/src/internal"
)

// SemanticIssue is one logic flaw the classify oracle reports.
type SemanticIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// SemanticReview is the classify oracle's verdict on contract logic.
type SemanticReview struct {
	Category           string          `json:"semantic_category"`
	BusinessLogicScore int             `json:"business_logic_score"`
	Issues             []SemanticIssue `json:"semantic_issues"`
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*({.*?})\\s*```")

// ParseIntentModel decodes the phase 1 response into an IntentModel.
func ParseIntentModel(response string) (*internal.IntentModel, error) {
	var model internal.IntentModel
	if err := decodeLayered(response, &model); err != nil {
		return nil, err
	}
	if model.ContractType == "" {
		return nil, fmt.Errorf("intent model missing contract_type")
	}
	if model.Features == nil {
		model.Features = []string{}
	}
	return &model, nil
}

// ParseSemanticReview decodes the semantic audit response.
func ParseSemanticReview(response string) (*SemanticReview, error) {
	var review SemanticReview
	if err := decodeLayered(response, &review); err != nil {
		return nil, err
	}
	review.Category = normalizeCategory(review.Category)
	for i := range review.Issues {
		review.Issues[i].Severity = normalizeSeverity(review.Issues[i].Severity)
	}
	return &review, nil
}

var knownCategories = map[string]bool{
	"none":                true,
	"minor_inefficiency":  true,
	"logic_gap":           true,
	"major_protocol_flaw": true,
	"funds_unspendable":   true,
}

func normalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = strings.ReplaceAll(c, " ", "_")
	if knownCategories[c] {
		return c
	}
	// An unrecognized category must not score as clean.
	return "logic_gap"
}

func normalizeSeverity(severity string) string {
	s := strings.ToUpper(strings.TrimSpace(severity))
	switch s {
	case "CRITICAL", "HIGH", "MEDIUM", "LOW", "INFO":
		return s
	default:
		return "HIGH"
	}
}

// decodeLayered tries progressively dirtier extractions: the raw response,
// the content of a ```json fence, then the first balanced JSON object.
func decodeLayered(response string, out interface{}) error {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return fmt.Errorf("empty response")
	}

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	if m := jsonFenceRe.FindStringSubmatch(trimmed); len(m) > 1 {
		if err := json.Unmarshal([]byte(m[1]), out); err == nil {
			return nil
		}
	}

	if obj, ok := firstJSONObject(trimmed); ok {
		if err := json.Unmarshal([]byte(obj), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no decodable JSON object in response")
}

// firstJSONObject scans for the first balanced {...}, honoring strings and
// escapes so braces inside field values do not break the match.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
