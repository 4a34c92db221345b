package handoff

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"lv0/internal/util"
)

// ErrReleased is returned when an artifact is used after Release.
var ErrReleased = errors.New("artifact released")

// Artifact is a report payload spooled to a private temp directory.
// The owner must call Release; it is safe to call more than once.
type Artifact struct {
	dir         string
	path        string
	size        int64
	contentType string

	mu       sync.Mutex
	released bool
}

// Spool copies r into a new temp workdir and returns the owning Artifact.
func Spool(r io.Reader, contentType string) (*Artifact, error) {
	dir, err := util.MakeTempWorkdir("artifact")
	if err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(dir, "payload")
	f, err := os.Create(path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("create artifact file: %w", err)
	}
	n, cerr := io.Copy(f, r)
	if err := f.Close(); cerr == nil {
		cerr = err
	}
	if cerr != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("spool artifact: %w", cerr)
	}
	return &Artifact{dir: dir, path: path, size: n, contentType: contentType}, nil
}

// Size returns the payload size in bytes.
func (a *Artifact) Size() int64 { return a.size }

// ContentType returns the content type reported by the server, if any.
func (a *Artifact) ContentType() string { return a.contentType }

// Open returns a reader over the payload.
func (a *Artifact) Open() (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, ErrReleased
	}
	return os.Open(a.path)
}

// Release deletes the backing temp directory.
func (a *Artifact) Release() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil
	}
	a.released = true
	return os.RemoveAll(a.dir)
}

// Released reports whether Release has been called.
func (a *Artifact) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}
