package archive

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for n, body := range files {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	good := writeZip(t, dir, "project.zip", map[string]string{
		"src/main.c": "int main(void) { return 0; }",
		"README":     "hello",
	})
	info, err := Inspect(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, "project.zip", info.Job.DisplayName)
	assert.Equal(t, good, info.Job.SourcePath)
	assert.Equal(t, 2, info.Entries)
	assert.Positive(t, info.Job.SizeBytes)

	upper := writeZip(t, dir, "UPPER.ZIP", map[string]string{"a": "b"})
	_, err = Inspect(ctx, upper)
	assert.NoError(t, err)
}

func TestInspectRejects(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tarball := filepath.Join(dir, "project.tar.gz")
	require.NoError(t, os.WriteFile(tarball, []byte("not a zip"), 0o644))

	fake := filepath.Join(dir, "fake.zip")
	require.NoError(t, os.WriteFile(fake, []byte("plain text pretending"), 0o644))

	empty := filepath.Join(dir, "empty.zip")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	noEntries := writeZip(t, dir, "none.zip", nil)

	big := filepath.Join(dir, "big.zip")
	f, err := os.Create(big)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxSize+1))
	require.NoError(t, f.Close())

	dirZip := filepath.Join(dir, "dir.zip")
	require.NoError(t, os.Mkdir(dirZip, 0o755))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"wrong extension", tarball, ErrNotZip},
		{"not zip content", fake, ErrNotZip},
		{"zero bytes", empty, ErrEmpty},
		{"too large", big, ErrTooLarge},
		{"directory", dirZip, ErrNotZip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(ctx, tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	// An archive without entries either fails identification or has no files.
	_, err = Prepare(ctx, noEntries)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmpty) || errors.Is(err, ErrNotZip), "got %v", err)
}
