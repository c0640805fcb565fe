package diff

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// HighlightLines renders source lines with ANSI syntax highlighting for the
// language implied by filename. It falls back to the plain lines when no
// lexer matches or tokenising fails; the result always has len(lines) entries.
func HighlightLines(filename string, lines []string) []string {
	lexer := lexerForFile(filename)
	if lexer == nil {
		return lines
	}

	iterator, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return lines
	}

	style := styles.Get("dracula")
	if style == nil {
		style = styles.Fallback
	}

	var buf bytes.Buffer
	if err := formatters.TTY256.Format(&buf, style, iterator); err != nil {
		return lines
	}

	out := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(out) != len(lines) {
		return lines
	}
	return out
}

func lexerForFile(filename string) chroma.Lexer {
	lexer := lexers.Match(filename)
	if lexer == nil {
		if ext := filepath.Ext(filename); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	return lexer
}
