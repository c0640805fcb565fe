package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sprite-ai/prlens/internal/model"
)

const maxLineLength = 120

// rule is a single line-local check.
type rule struct {
	family     model.IssueType
	severity   model.Severity
	match      func(line string) bool
	message    func(line string) string
	suggestion string
}

func (r rule) check(line string, n int) (model.Issue, bool) {
	if !r.match(line) {
		return model.Issue{}, false
	}
	return model.Issue{
		Type:        r.family,
		Line:        n,
		Description: r.message(line),
		Suggestion:  r.suggestion,
		Severity:    r.severity,
	}, true
}

func fixed(msg string) func(string) string {
	return func(string) string { return msg }
}

var (
	commaNoSpace = regexp.MustCompile(`,[^\s\]]`)
	bareExcept   = regexp.MustCompile(`^\s*except\s*:`)
	printCall    = regexp.MustCompile(`\bprint\s*\(`)
)

// commonRules run for every file regardless of extension.
var commonRules = []rule{
	{
		family:   model.IssueStyle,
		severity: model.SeverityLow,
		match: func(line string) bool {
			return len(line) > maxLineLength
		},
		message: func(line string) string {
			return fmt.Sprintf("Line too long (%d characters)", len(line))
		},
		suggestion: "Break line into multiple lines or refactor",
	},
	{
		family:   model.IssueStyle,
		severity: model.SeverityLow,
		match: func(line string) bool {
			return strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t")
		},
		message:    fixed("Trailing whitespace"),
		suggestion: "Remove trailing whitespace",
	},
}

var pythonRules = []rule{
	{
		family:     model.IssueStyle,
		severity:   model.SeverityLow,
		match:      commaNoSpace.MatchString,
		message:    fixed("Missing space after comma"),
		suggestion: "Add space after comma",
	},
	{
		family:   model.IssueBug,
		severity: model.SeverityMedium,
		match: func(line string) bool {
			if strings.Contains(line, "is None") {
				return false
			}
			return strings.Contains(line, "== None") || strings.Contains(line, "!= None")
		},
		message:    fixed("Use 'is None' instead of '== None'"),
		suggestion: "Replace '== None' with 'is None'",
	},
	{
		family:     model.IssueBug,
		severity:   model.SeverityHigh,
		match:      bareExcept.MatchString,
		message:    fixed("Bare except clause"),
		suggestion: "Specify exception type or use 'except Exception:'",
	},
	{
		// Line-local heuristic: no loop detection.
		family:   model.IssuePerformance,
		severity: model.SeverityMedium,
		match: func(line string) bool {
			return strings.Contains(line, "+=") && strings.Contains(strings.ToLower(line), "str")
		},
		message:    fixed("Potential inefficient string concatenation"),
		suggestion: "Consider using join() or f-strings for better performance",
	},
	{
		family:   model.IssueBestPractice,
		severity: model.SeverityLow,
		match: func(line string) bool {
			return strings.Contains(strings.ToUpper(line), "TODO")
		},
		message:    fixed("TODO comment found"),
		suggestion: "Consider creating a ticket or implementing the TODO",
	},
	{
		family:     model.IssueBestPractice,
		severity:   model.SeverityLow,
		match:      printCall.MatchString,
		message:    fixed("Print statement found"),
		suggestion: "Consider using logging instead of print statements",
	},
}

// languageRules maps a lowercase file extension to its language-specific rules.
var languageRules = map[string][]rule{
	"py": pythonRules,
}

// familyOrder is the order in which rule families report per line.
var familyOrder = []model.IssueType{
	model.IssueStyle,
	model.IssueBug,
	model.IssuePerformance,
	model.IssueBestPractice,
}

// rulesFor resolves the ordered rule list for a file path once.
func rulesFor(path string) []rule {
	ext := extension(path)
	candidates := append(append([]rule{}, commonRules...), languageRules[ext]...)

	ordered := make([]rule, 0, len(candidates))
	for _, fam := range familyOrder {
		for _, r := range candidates {
			if r.family == fam {
				ordered = append(ordered, r)
			}
		}
	}
	return ordered
}

// extension returns the lowercase text after the final dot in path, or the
// whole lowercase path when there is no dot.
func extension(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return strings.ToLower(path[i+1:])
	}
	return strings.ToLower(path)
}
