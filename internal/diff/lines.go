package diff

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sprite-ai/prlens/internal/model"
)

// hunkHeader matches "@@ -a[,b] +c[,d] @@" with optional trailing section text.
var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// hunk tracks the remaining line budget of the hunk being scanned.
type hunk struct {
	next     int // next new-side line number
	oldLeft  int
	newLeft  int
	isActive bool
}

func (h *hunk) done() bool {
	return h.oldLeft <= 0 && h.newLeft <= 0
}

// ChangedLines scans a unified diff and returns, for every file it mentions,
// the new-side line numbers of added lines. It never fails: headers it cannot
// parse are skipped, so malformed input only yields fewer lines.
func ChangedLines(raw string) model.ChangedLineSet {
	out := make(model.ChangedLineSet)
	if raw == "" {
		return out
	}

	var (
		current string
		h       hunk
	)

	for _, line := range strings.Split(raw, "\n") {
		if h.isActive && !h.done() {
			if consumeHunkLine(line, &h, out, current) {
				continue
			}
		}

		switch {
		case strings.HasPrefix(line, "diff --git "):
			h = hunk{}
			current = ""
			if path, ok := newSidePath(line); ok {
				current = path
				if _, seen := out[path]; !seen {
					out[path] = []int{}
				}
			}

		case strings.HasPrefix(line, "@@"):
			h = hunk{}
			if current == "" {
				continue
			}
			if parsed, ok := parseHunkHeader(line); ok {
				h = parsed
			}
		}
	}

	return out
}

// consumeHunkLine applies one content line to the active hunk. It returns
// false when the line is not hunk content and should be treated as a header.
func consumeHunkLine(line string, h *hunk, out model.ChangedLineSet, file string) bool {
	if line == "" || line == "\r" {
		// Blank context line whose leading space was stripped, possibly
		// leaving only the CR of a CRLF diff.
		h.oldLeft--
		h.newLeft--
		h.next++
		return true
	}

	switch line[0] {
	case '+':
		if h.newLeft > 0 {
			out[file] = append(out[file], h.next)
			h.next++
			h.newLeft--
		}
		return true
	case ' ':
		h.oldLeft--
		h.newLeft--
		h.next++
		return true
	case '-':
		h.oldLeft--
		return true
	case '\\':
		return true
	}

	h.isActive = false
	return false
}

// newSidePath extracts the path after the last " b/" of a diff --git header.
func newSidePath(header string) (string, bool) {
	idx := strings.LastIndex(header, " b/")
	if idx < 0 {
		return "", false
	}
	path := strings.TrimSpace(header[idx+len(" b/"):])
	path = strings.Trim(path, `"`)
	if path == "" {
		return "", false
	}
	return path, true
}

func parseHunkHeader(line string) (hunk, bool) {
	m := hunkHeader.FindStringSubmatch(line)
	if m == nil {
		return hunk{}, false
	}

	oldCount, ok := countOrDefault(m[2])
	if !ok {
		return hunk{}, false
	}
	newStart, err := strconv.Atoi(m[3])
	if err != nil {
		return hunk{}, false
	}
	newCount, ok := countOrDefault(m[4])
	if !ok {
		return hunk{}, false
	}

	return hunk{
		next:     newStart,
		oldLeft:  oldCount,
		newLeft:  newCount,
		isActive: true,
	}, true
}

func countOrDefault(s string) (int, bool) {
	if s == "" {
		return 1, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
