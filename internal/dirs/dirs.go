// Package dirs locates lv0's per-user directories: configuration, the cache
// that holds spooled reports and scratch space, and the state directory that
// holds the TUI log.
package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "lv0"

// AppName returns the directory name used under every base directory.
func AppName() string {
	return appName
}

// base describes where one kind of directory lives on each platform.
type base struct {
	xdgEnv string   // Linux override
	linux  []string // under $HOME when xdgEnv is unset
	darwin []string // under $HOME
	other  func() (string, error)
	sub    string // appended after appName outside Linux
}

var (
	configBase = base{
		xdgEnv: "XDG_CONFIG_HOME",
		linux:  []string{".config"},
		darwin: []string{"Library", "Application Support"},
		other:  os.UserConfigDir,
	}
	cacheBase = base{
		xdgEnv: "XDG_CACHE_HOME",
		linux:  []string{".cache"},
		darwin: []string{"Library", "Caches"},
		other:  os.UserCacheDir,
	}
	stateBase = base{
		xdgEnv: "XDG_STATE_HOME",
		linux:  []string{".local", "state"},
		darwin: []string{"Library", "Application Support"},
		other:  localAppData,
		sub:    "state",
	}
)

func localAppData() (string, error) {
	if la := os.Getenv("LOCALAPPDATA"); la != "" {
		return la, nil
	}
	return os.UserConfigDir()
}

func (b base) resolve(goos string) (string, error) {
	if goos == "linux" {
		if xdg := os.Getenv(b.xdgEnv); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
	}
	var root string
	switch goos {
	case "linux", "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		parts := b.darwin
		if goos == "linux" {
			parts = b.linux
		}
		root = filepath.Join(append([]string{home}, parts...)...)
	default:
		r, err := b.other()
		if err != nil {
			return "", err
		}
		root = r
	}
	if goos == "linux" {
		return filepath.Join(root, appName), nil
	}
	return filepath.Join(root, appName, b.sub), nil
}

// ConfigDir holds config.yaml. On Linux it honours $XDG_CONFIG_HOME.
func ConfigDir() (string, error) { return configBase.resolve(runtime.GOOS) }

// CacheDir is the root for spooled reports and temporary workdirs.
func CacheDir() (string, error) { return cacheBase.resolve(runtime.GOOS) }

// StateDir holds the log written while the TUI owns the terminal.
func StateDir() (string, error) { return stateBase.resolve(runtime.GOOS) }

// TempBaseDir is the parent of every per-run workdir.
func TempBaseDir() (string, error) {
	c, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(c, "temp"), nil
}

// LogFile returns the path of the log file used while the TUI owns the terminal.
func LogFile() (string, error) {
	s, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(s, appName+".log"), nil
}

// Ensure creates path and any missing parents.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(filepath.Clean(path), 0o755)
}

// EnsureAll creates the config, cache and state directories. Directories
// whose location cannot be resolved are skipped.
func EnsureAll() error {
	for _, fn := range []func() (string, error){ConfigDir, CacheDir, StateDir} {
		p, err := fn()
		if err != nil {
			continue
		}
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}
