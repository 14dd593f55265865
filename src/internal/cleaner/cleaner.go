package cleaner

import (
	"regexp"
	"strings"
)

var (
	fenceOpenRe = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
	pragmaRe    = regexp.MustCompile(`(?m)^\s*pragma\s+cashscript`)
)

// CleanCode extracts CashScript from a model response. Models wrap code in
// markdown fences and sometimes lead with prose despite instructions; the
// pragma line is the reliable start marker.
func CleanCode(raw string) string {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return ""
	}

	// Prefer the first fenced block that contains a pragma.
	if blocks := fencedBlocks(clean); len(blocks) > 0 {
		for _, b := range blocks {
			if pragmaRe.MatchString(b) {
				return strings.TrimSpace(b)
			}
		}
		clean = strings.TrimSpace(blocks[0])
	}

	// Drop any prose before the pragma line.
	if loc := pragmaRe.FindStringIndex(clean); loc != nil && loc[0] > 0 {
		clean = clean[loc[0]:]
	}

	return strings.TrimSpace(clean)
}

// fencedBlocks returns the contents of every ``` fenced block, in order.
func fencedBlocks(s string) []string {
	var blocks []string
	for {
		open := fenceOpenRe.FindStringIndex(s)
		if open == nil {
			return blocks
		}
		rest := s[open[1]:]
		rest = strings.TrimPrefix(rest, "\n")
		closeIdx := strings.Index(rest, "```")
		if closeIdx < 0 {
			// Unterminated fence: take everything after the opener.
			blocks = append(blocks, rest)
			return blocks
		}
		blocks = append(blocks, rest[:closeIdx])
		s = rest[closeIdx+3:]
	}
}
