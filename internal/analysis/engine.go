// Package analysis runs line-local heuristic rules over file content.
//
// Rules never look beyond the line they inspect. That keeps them cheap and
// predictable at the cost of false positives a parser would avoid.
package analysis

import (
	"strings"

	"github.com/sprite-ai/prlens/internal/model"
)

// Analyze checks the given 1-based line numbers of content and returns the
// issues found, ordered by the order of lines and then by rule family. An
// empty lines slice analyzes the whole file. Line numbers outside the file are
// ignored.
func Analyze(content, path string, lines []int) []model.Issue {
	source := strings.Split(content, "\n")
	rules := rulesFor(path)

	targets := lines
	if len(targets) == 0 {
		targets = make([]int, len(source))
		for i := range source {
			targets[i] = i + 1
		}
	}

	var issues []model.Issue
	for _, n := range targets {
		if n < 1 || n > len(source) {
			continue
		}
		line := source[n-1]
		for _, r := range rules {
			if is, ok := r.check(line, n); ok {
				issues = append(issues, is)
			}
		}
	}
	return issues
}
