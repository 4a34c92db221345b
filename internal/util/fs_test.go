package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "untitled"},
		{"my project", "my project"},
		{"report#1", "report#1"},
		{"a/b\\c:d", "a_b_c_d"},
		{"tab\tname", "tab_name"},
		{" spaced. ", "spaced"},
		{"...", "untitled"},
		{"report.v2", "report.v2"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	long := strings.Repeat("x", 300)
	if got := SanitizeFilename(long); len(got) != 200 {
		t.Errorf("long name truncated to %d runes, want 200", len(got))
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "report.pdf")
	n, err := WriteFileAtomic(dest, strings.NewReader("first"))
	if err != nil || n != 5 {
		t.Fatalf("WriteFileAtomic = %d, %v", n, err)
	}
	if _, err := WriteFileAtomic(dest, strings.NewReader("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "second" {
		t.Fatalf("content = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestMakeTempWorkdir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir, err := MakeTempWorkdir("artifact")
	if err != nil {
		t.Fatalf("MakeTempWorkdir: %v", err)
	}
	defer os.RemoveAll(dir)
	if !strings.HasPrefix(filepath.Base(dir), "artifact-") {
		t.Errorf("dir %q lacks prefix", dir)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("dir not created: %v", err)
	}
}
