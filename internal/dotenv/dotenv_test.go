package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_MissingFileIsNotAnError(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
}

func TestLoadFile_SetsValuesAndKeepsExisting(t *testing.T) {
	t.Setenv("PITCH_DOTENV_EXISTING", "from-env")
	os.Unsetenv("PITCH_DOTENV_FRESH")
	os.Unsetenv("PITCH_DOTENV_QUOTED")
	os.Unsetenv("PITCH_DOTENV_EXPORTED")
	t.Cleanup(func() {
		os.Unsetenv("PITCH_DOTENV_FRESH")
		os.Unsetenv("PITCH_DOTENV_QUOTED")
		os.Unsetenv("PITCH_DOTENV_EXPORTED")
	})

	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment line

PITCH_DOTENV_EXISTING=from-file
PITCH_DOTENV_FRESH= plain value
PITCH_DOTENV_QUOTED="hello world"
export PITCH_DOTENV_EXPORTED='single'
NOT_A_PAIR
=no-key
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := os.Getenv("PITCH_DOTENV_EXISTING"); got != "from-env" {
		t.Fatalf("existing value overwritten: %q", got)
	}
	if got := os.Getenv("PITCH_DOTENV_FRESH"); got != "plain value" {
		t.Fatalf("PITCH_DOTENV_FRESH=%q", got)
	}
	if got := os.Getenv("PITCH_DOTENV_QUOTED"); got != "hello world" {
		t.Fatalf("PITCH_DOTENV_QUOTED=%q", got)
	}
	if got := os.Getenv("PITCH_DOTENV_EXPORTED"); got != "single" {
		t.Fatalf("PITCH_DOTENV_EXPORTED=%q", got)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		wantKey string
		wantVal string
		wantOK  bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"  KEY = value ", "KEY", "value", true},
		{`KEY="a=b"`, "KEY", "a=b", true},
		{"KEY=", "KEY", "", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no-equals", "", "", false},
		{"=orphan", "", "", false},
		{`KEY="mismatched'`, "KEY", `"mismatched'`, true},
	}
	for _, tt := range tests {
		key, val, ok := parseLine(tt.line)
		if key != tt.wantKey || val != tt.wantVal || ok != tt.wantOK {
			t.Fatalf("parseLine(%q)=(%q,%q,%v), want (%q,%q,%v)",
				tt.line, key, val, ok, tt.wantKey, tt.wantVal, tt.wantOK)
		}
	}
}
