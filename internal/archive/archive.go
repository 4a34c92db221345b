// Package archive validates source archives before they are uploaded.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"lv0/internal/model"
)

// MaxSize is the largest archive the backend accepts.
const MaxSize = 100 * 1024 * 1024

var (
	ErrNotZip   = errors.New("only .zip archives are supported")
	ErrTooLarge = errors.New("archive exceeds the 100 MB limit")
	ErrEmpty    = errors.New("archive is empty")
)

// Info describes a validated archive.
type Info struct {
	Job     model.UploadJob
	Entries int // regular files inside the archive
}

// Inspect checks that path is a non-empty ZIP archive within MaxSize.
func Inspect(ctx context.Context, path string) (Info, error) {
	name := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return Info{}, fmt.Errorf("%s: %w", name, ErrNotZip)
	}
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat archive: %w", err)
	}
	if fi.IsDir() {
		return Info{}, fmt.Errorf("%s is a directory: %w", name, ErrNotZip)
	}
	if fi.Size() == 0 {
		return Info{}, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	if fi.Size() > MaxSize {
		return Info{}, fmt.Errorf("%s: %w", name, ErrTooLarge)
	}

	format := archives.Zip{}
	match, err := format.Match(ctx, name, f)
	if err != nil {
		return Info{}, fmt.Errorf("identify archive: %w", err)
	}
	if !match.ByStream {
		return Info{}, fmt.Errorf("%s: content is not a ZIP archive: %w", name, ErrNotZip)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("rewind archive: %w", err)
	}

	entries := 0
	err = format.Extract(ctx, f, func(ctx context.Context, info archives.FileInfo) error {
		if !info.IsDir() {
			entries++
		}
		return nil
	})
	if err != nil {
		return Info{}, fmt.Errorf("read archive: %w", err)
	}
	if entries == 0 {
		return Info{}, fmt.Errorf("%s: %w", name, ErrEmpty)
	}

	return Info{
		Job: model.UploadJob{
			SourcePath:  path,
			DisplayName: name,
			SizeBytes:   fi.Size(),
		},
		Entries: entries,
	}, nil
}

// Prepare validates path and returns the job to upload.
func Prepare(ctx context.Context, path string) (model.UploadJob, error) {
	info, err := Inspect(ctx, path)
	if err != nil {
		return model.UploadJob{}, err
	}
	return info.Job, nil
}
