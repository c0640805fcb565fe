// Package filter decides which changed files are worth reviewing.
package filter

import "strings"

// skipExtensions are binary, archive, media, lock and log suffixes.
var skipExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".pdf", ".doc", ".docx", ".xls", ".xlsx",
	".zip", ".tar", ".gz", ".rar",
	".mp4", ".avi", ".mov", ".mp3", ".wav",
	".lock", ".log",
}

// skipDirs are vendored or generated directory segments.
var skipDirs = []string{
	"node_modules/", "venv/", "__pycache__/", ".git/",
	"dist/", "build/", "target/", ".idea/", ".vscode/",
}

// ShouldSkip reports whether path should be excluded from analysis. It must
// be consulted before fetching file content.
func ShouldSkip(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, dir := range skipDirs {
		if strings.Contains(path, dir) {
			return true
		}
	}
	return false
}
