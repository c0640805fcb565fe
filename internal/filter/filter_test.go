package filter

import "testing"

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"main.py", false},
		{"src/app/handlers.go", false},
		{"assets/logo.PNG", true},
		{"docs/manual.pdf", true},
		{"poetry.lock", true},
		{"yarn.lock", true},
		{"logs/server.log", true},
		{"release.tar.gz", true},
		{"web/node_modules/react/index.js", true},
		{"venv/lib/site.py", true},
		{"pkg/__pycache__/mod.pyc", true},
		{"dist/bundle.js", true},
		{"services/build/out.py", true},
		{".vscode/settings.json", true},
		{"rebuild.py", false},
		{"distance.py", false},
	}

	for _, tt := range tests {
		if got := ShouldSkip(tt.path); got != tt.want {
			t.Errorf("ShouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
