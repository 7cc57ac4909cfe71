package report

import (
	"fmt"
	"strings"
)

// Markdown renders a summary as a markdown table for terminals and files.
func Markdown(s Summary) string {
	var b strings.Builder
	verdict := "PASSED"
	if !s.Success {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "# Test run %s\n\n", verdict)
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`\n\n", s.RunID)
	}
	fmt.Fprintf(&b, "**%d** passed, **%d** failed, **%d** total\n\n", s.TestsPassed, s.TestsFailed, s.TotalTests)

	if len(s.Details) > 0 {
		b.WriteString("| Test | Status | Duration | Notes |\n|---|---|---|---|\n")
		for _, r := range s.Details {
			notes := r.Message
			if r.Healed && r.HealingInfo != nil {
				notes = fmt.Sprintf("healed (%s, %.2f)", r.HealingInfo.Strategy, r.HealingInfo.Confidence)
			}
			fmt.Fprintf(&b, "| %s | %s | %dms | %s |\n", cell(r.Name), r.Status, r.Duration, cell(notes))
		}
		b.WriteString("\n")
	}

	explained := false
	for _, r := range s.Details {
		if r.AIExplanation == "" {
			continue
		}
		if !explained {
			b.WriteString("## Failure analysis\n\n")
			explained = true
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", r.Name, r.AIExplanation)
	}
	if explained {
		b.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		b.WriteString("## Page errors\n\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}
	if s.Commentary != "" {
		b.WriteString("## Commentary\n\n")
		b.WriteString(strings.TrimSpace(s.Commentary))
		b.WriteString("\n")
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
