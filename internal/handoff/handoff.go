// Package handoff packages a finished analysis and delivers the report.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"lv0/internal/model"
	"lv0/internal/util"
)

const (
	reportExt      = ".pdf"
	fallbackName   = "vulnerability-report.pdf"
	pdfContentType = "application/pdf"
)

// Bundle is what a successful run hands to the next stage.
type Bundle struct {
	Artifact    *Artifact
	DisplayName string
	JobID       string
}

// DisplayName derives the report file name from the uploaded source name by
// replacing its extension with .pdf.
func DisplayName(source string) string {
	base := filepath.Base(strings.TrimSpace(source))
	if base == "." || base == "/" || base == "" {
		return fallbackName
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return fallbackName
	}
	return util.SanitizeFilename(stem) + reportExt
}

// Sink stores a delivered report and returns where it ended up.
type Sink interface {
	Deliver(ctx context.Context, b Bundle) (string, error)
}

// DirSink writes reports into a local directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Deliver(ctx context.Context, b Bundle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rc, err := b.Artifact.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	dest := filepath.Join(dir, b.DisplayName)
	if _, err := util.WriteFileAtomic(dest, rc); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return dest, nil
}

// MultiSink delivers to every sink in order. The first sink's location is
// returned; a failure in any sink fails the delivery.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, b Bundle) (string, error) {
	if len(m) == 0 {
		return "", errors.New("no sinks configured")
	}
	var first string
	for i, s := range m {
		loc, err := s.Deliver(ctx, b)
		if err != nil {
			return "", err
		}
		if i == 0 {
			first = loc
		}
	}
	return first, nil
}

// Deliver hands b to sink and releases the artifact whatever the outcome.
func Deliver(ctx context.Context, sink Sink, b Bundle) (model.Report, error) {
	defer b.Artifact.Release()
	if b.JobID == "" {
		return model.Report{}, errors.New("bundle has no job id")
	}
	loc, err := sink.Deliver(ctx, b)
	if err != nil {
		return model.Report{}, fmt.Errorf("deliver report: %w", err)
	}
	return model.Report{
		JobID:       b.JobID,
		DisplayName: b.DisplayName,
		Location:    loc,
		Bytes:       b.Artifact.Size(),
	}, nil
}

// Locator is implemented by sinks that can tell where a bundle would be
// stored without storing it.
type Locator interface {
	Locate(b Bundle) string
}

func (s DirSink) Locate(b Bundle) string {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, b.DisplayName)
}

// Locations lists the destinations sink would deliver b to.
func Locations(sink Sink, b Bundle) []string {
	switch s := sink.(type) {
	case MultiSink:
		var out []string
		for _, inner := range s {
			out = append(out, Locations(inner, b)...)
		}
		return out
	case Locator:
		return []string{s.Locate(b)}
	}
	return nil
}
