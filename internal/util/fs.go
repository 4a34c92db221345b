package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"lv0/internal/dirs"
)

// MakeTempWorkdir creates a unique temp directory under the app's cache temp
// dir, falling back to $TMPDIR/lv0.
func MakeTempWorkdir(prefix string) (string, error) {
	base, err := dirs.TempBaseDir()
	if err != nil || dirs.Ensure(base) != nil {
		base = filepath.Join(os.TempDir(), dirs.AppName())
		if err := dirs.Ensure(base); err != nil {
			return "", err
		}
	}
	// Prefix helps identification; OS will add random suffix.
	dir, err := os.MkdirTemp(base, prefix+"-")
	if err != nil {
		return "", err
	}
	return dir, nil
}

// WriteFileAtomic copies r into path via a sibling temp file and a rename,
// so readers never observe a partially written report.
func WriteFileAtomic(path string, r io.Reader) (int64, error) {
	if err := dirs.Ensure(filepath.Dir(path)); err != nil {
		return 0, fmt.Errorf("ensure dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return 0, err
	}
	n, cerr := io.Copy(tmp, r)
	if err := tmp.Close(); cerr == nil {
		cerr = err
	}
	if cerr != nil {
		_ = os.Remove(tmp.Name())
		return 0, cerr
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

// SanitizeFilename makes s usable as a single path element. Path separators,
// characters Windows reserves and control characters become underscores;
// leading and trailing spaces and dots are trimmed. Spaces and other
// punctuation inside the name are kept. The result is capped at 200 runes.
func SanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(s, " .")

	const maxRunes = 200
	if utf8.RuneCountInString(s) > maxRunes {
		s = string([]rune(s)[:maxRunes])
	}

	if s == "" {
		return "untitled"
	}
	return s
}
