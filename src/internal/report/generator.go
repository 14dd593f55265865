package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/CovenantBits/Covforge/src/internal"
)

// Report bundles one audited contract with everything the renderer needs.
type Report struct {
	ContractName string
	Intent       string
	Mode         string
	Code         string
	Audit        internal.AuditReport
	GeneratedAt  time.Time
}

func NewReport(contractName, intent, mode, code string, audit internal.AuditReport) *Report {
	return &Report{
		ContractName: contractName,
		Intent:       intent,
		Mode:         mode,
		Code:         code,
		Audit:        audit,
		GeneratedAt:  time.Now(),
	}
}

type Generator interface {
	Generate(report *Report) (string, error)
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (g *MarkdownGenerator) Generate(report *Report) (string, error) {
	var b strings.Builder

	b.WriteString("# Covforge Audit Report\n\n")
	if report.ContractName != "" {
		b.WriteString(fmt.Sprintf("**Contract**: `%s`\n", report.ContractName))
	}
	if report.Mode != "" {
		b.WriteString(fmt.Sprintf("**Mode**: %s\n", report.Mode))
	}
	if report.Intent != "" {
		b.WriteString(fmt.Sprintf("**Intent**: %s\n", report.Intent))
	}
	b.WriteString(fmt.Sprintf("**Generated**: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	audit := report.Audit

	b.WriteString("## Score\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|-------|\n")
	b.WriteString(fmt.Sprintf("| Deterministic (0-70) | %d |\n", audit.DeterministicScore))
	b.WriteString(fmt.Sprintf("| Semantic (0-30) | %d |\n", audit.SemanticScore))
	b.WriteString(fmt.Sprintf("| Total | %d |\n", audit.TotalScore))
	b.WriteString(fmt.Sprintf("| Displayed | %d |\n", audit.DisplayScore))
	b.WriteString(fmt.Sprintf("| Risk Level | %s |\n", audit.RiskLevel))
	b.WriteString(fmt.Sprintf("| Semantic Category | %s |\n", audit.SemanticCategory))
	deploy := "❌ Blocked"
	if audit.DeploymentAllowed {
		deploy = "✅ Allowed"
	}
	b.WriteString(fmt.Sprintf("| Deployment | %s |\n\n", deploy))

	if len(audit.CountsBySeverity) > 0 {
		b.WriteString("## Severity Distribution\n\n")
		for _, sev := range severityOrder {
			if count := audit.CountsBySeverity[sev]; count > 0 {
				b.WriteString(fmt.Sprintf("- %s %s: %d\n", severityIcon(sev), sev, count))
			}
		}
		b.WriteString("\n")
	}

	if len(audit.Issues) > 0 {
		b.WriteString("## Issues\n\n")
		issues := make([]internal.AuditIssue, len(audit.Issues))
		copy(issues, audit.Issues)
		sort.SliceStable(issues, func(i, j int) bool {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		})
		for _, issue := range issues {
			b.WriteString(fmt.Sprintf("### %s %s — %s\n\n", severityIcon(issue.Severity), issue.Severity, issue.Title))
			if issue.RuleID != "" {
				b.WriteString(fmt.Sprintf("**Rule**: `%s`\n\n", issue.RuleID))
			}
			if issue.Line > 0 {
				b.WriteString(fmt.Sprintf("**Line**: %d\n\n", issue.Line))
			}
			if issue.Description != "" {
				b.WriteString(issue.Description + "\n\n")
			}
			if issue.Recommendation != "" {
				b.WriteString(fmt.Sprintf("**Recommendation**: %s\n\n", issue.Recommendation))
			}
			b.WriteString("---\n\n")
		}
	} else {
		b.WriteString("## ✅ No issues found\n\n")
	}

	if report.Code != "" {
		b.WriteString("<details>\n<summary>Contract source</summary>\n\n")
		b.WriteString("```cashscript\n" + report.Code + "\n```\n\n")
		b.WriteString("</details>\n")
	}

	return b.String(), nil
}

var severityOrder = []internal.Severity{
	internal.SeverityCritical,
	internal.SeverityHigh,
	internal.SeverityMedium,
	internal.SeverityLow,
	internal.SeverityInfo,
}

func severityIcon(severity internal.Severity) string {
	switch severity {
	case internal.SeverityCritical:
		return "🔴"
	case internal.SeverityHigh:
		return "🟠"
	case internal.SeverityMedium:
		return "🟡"
	case internal.SeverityLow:
		return "🟢"
	default:
		return "⚪"
	}
}
