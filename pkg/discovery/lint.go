package discovery

import (
	"fmt"
	"strings"
)

// LintResult is the structured lint report the discovery tool emits on
// exit code 1 when static checks fail. The violations are fatal to the
// import, not to the tool itself.
type LintResult struct {
	Errors []LintIssue `json:"errors"`
}

// LintIssue is a single lint violation.
type LintIssue struct {
	Message  string     `json:"message"`
	Severity int        `json:"severity"`
	File     string     `json:"file"`
	Range    *LintRange `json:"range"`
}

// LintRange locates an issue in its source file.
type LintRange struct {
	Start LintPosition `json:"start"`
}

// LintPosition is a zero-based line/character pair.
type LintPosition struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Format renders the violations as a human-readable multi-line message.
// Returns the empty string when there are no violations.
func (r *LintResult) Format() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Lint issues found:")
	for _, issue := range r.Errors {
		b.WriteString("\n  ")
		if issue.File != "" {
			b.WriteString(issue.File)
			if issue.Range != nil {
				fmt.Fprintf(&b, ":%d", issue.Range.Start.Line+1)
			}
			b.WriteString(": ")
		}
		fmt.Fprintf(&b, "[%s] %s", severityLabel(issue.Severity), issue.Message)
	}
	return b.String()
}

func severityLabel(severity int) string {
	switch severity {
	case 2:
		return "warning"
	case 3:
		return "info"
	case 4:
		return "hint"
	default:
		return "error"
	}
}
