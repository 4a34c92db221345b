package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Info("api.upload.request")
	l.Warn("poller.status_error", "job_id", "j1")
	out := buf.String()
	if strings.Contains(out, "api.upload.request") {
		t.Fatalf("info record written in quiet mode: %q", out)
	}
	if !strings.Contains(out, "poller.status_error") || !strings.Contains(out, "job_id=j1") {
		t.Fatalf("warn record missing: %q", out)
	}

	buf.Reset()
	New(&buf, true).Debug("poller.report")
	if !strings.Contains(buf.String(), "poller.report") {
		t.Fatalf("debug record missing in verbose mode: %q", buf.String())
	}
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "lv0.log")
	l, closeFn, err := NewFile(path, false)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("pipeline.run.start", "run_id", "r1")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "pipeline.run.start") {
		t.Fatalf("log file = %q", b)
	}
}
