package dirs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResolveXDGOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/x/config")
	t.Setenv("XDG_CACHE_HOME", "/x/cache")
	t.Setenv("XDG_STATE_HOME", "/x/state")

	tests := []struct {
		name string
		b    base
		want string
	}{
		{"config", configBase, "/x/config/lv0"},
		{"cache", cacheBase, "/x/cache/lv0"},
		{"state", stateBase, "/x/state/lv0"},
	}
	for _, tt := range tests {
		got, err := tt.b.resolve("linux")
		if err != nil || got != filepath.FromSlash(tt.want) {
			t.Errorf("%s: resolve = %q, %v; want %q", tt.name, got, err, tt.want)
		}
	}
}

func TestResolveHomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", "")

	got, err := stateBase.resolve("linux")
	if err != nil || got != filepath.Join(home, ".local", "state", "lv0") {
		t.Errorf("linux state = %q, %v", got, err)
	}
	got, err = stateBase.resolve("darwin")
	if err != nil || got != filepath.Join(home, "Library", "Application Support", "lv0", "state") {
		t.Errorf("darwin state = %q, %v", got, err)
	}
	got, err = cacheBase.resolve("darwin")
	if err != nil || got != filepath.Join(home, "Library", "Caches", "lv0") {
		t.Errorf("darwin cache = %q, %v", got, err)
	}
}

func TestResolveLocalAppData(t *testing.T) {
	t.Setenv("LOCALAPPDATA", "/appdata")
	got, err := stateBase.resolve("windows")
	if err != nil || got != filepath.Join("/appdata", "lv0", "state") {
		t.Errorf("windows state = %q, %v", got, err)
	}
}

func TestEnsureAllCreatesOnlyUsedDirs(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout")
	}
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))

	if err := EnsureAll(); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	for _, d := range []string{"config", "cache", "state"} {
		if fi, err := os.Stat(filepath.Join(root, d, "lv0")); err != nil || !fi.IsDir() {
			t.Errorf("%s dir not created: %v", d, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "data")); !os.IsNotExist(err) {
		t.Errorf("data dir created: %v", err)
	}

	lf, err := LogFile()
	if err != nil || lf != filepath.Join(root, "state", "lv0", "lv0.log") {
		t.Errorf("LogFile = %q, %v", lf, err)
	}
}

func TestEnsureRejectsEmptyPath(t *testing.T) {
	if err := Ensure(""); err == nil {
		t.Fatal("Ensure(\"\") succeeded")
	}
	p := filepath.Join(t.TempDir(), "a", "b")
	if err := Ensure(p); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}
