package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestArchiver_RoundTrip(t *testing.T) {
	dest := t.TempDir()
	src := filepath.Join(dest, "support_dump_20261017-090530")
	files := map[string]string{
		"events":                             "LAST SEEN   TYPE",
		"pod_logs/hippo-0_database.log":      "database system is ready",
		"pg_logs/hippo-0/postgresql-Fri.log": "checkpoint starting",
		"pg_pod_details/hippo-0_database.log": "=== ps aux ===",
	}
	writeTree(t, src, files)

	res, err := Archiver{}.Create(src)
	require.NoError(t, err)
	assert.Equal(t, src+".tar.gz", res.Path)
	assert.Equal(t, SizeNormal, res.Class)
	assert.False(t, res.Removed)
	assert.DirExists(t, src)

	entries := readArchive(t, res.Path)
	tops := map[string]bool{}
	for name := range entries {
		assert.False(t, filepath.IsAbs(name), name)
		tops[strings.SplitN(name, "/", 2)[0]] = true
	}
	assert.Equal(t, map[string]bool{"support_dump_20261017-090530": true}, tops)

	for rel, content := range files {
		got, ok := entries["support_dump_20261017-090530/"+rel]
		if assert.True(t, ok, "missing %s", rel) {
			assert.Equal(t, content, got)
		}
	}
	assert.Contains(t, entries, "support_dump_20261017-090530/pod_logs/")
}

func TestArchiver_DeleteAfter(t *testing.T) {
	src := filepath.Join(t.TempDir(), "dump")
	writeTree(t, src, map[string]string{"events": "x"})

	res, err := Archiver{DeleteAfter: true}.Create(src)
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.NoDirExists(t, src)
	assert.FileExists(t, res.Path)
}

func TestArchiver_MissingSource(t *testing.T) {
	_, err := Archiver{}.Create(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestArchiver_UnwritableDestination(t *testing.T) {
	src := filepath.Join(t.TempDir(), "dump")
	writeTree(t, src, map[string]string{"events": "x"})
	require.NoError(t, os.Mkdir(src+Extension, 0o755))

	_, err := Archiver{DeleteAfter: true}.Create(src)
	assert.ErrorContains(t, err, "failed to create archive")
	assert.DirExists(t, src+Extension)
	assert.FileExists(t, filepath.Join(src, "events"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want SizeClass
	}{
		{"empty", 0, SizeNormal},
		{"just below", SizeThreshold - 1, SizeNormal},
		{"exactly threshold", SizeThreshold, SizeNormal},
		{"just above", SizeThreshold + 1, SizeOversize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.size))
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "26,214,401 bytes (25.00 MiB)", FormatSize(SizeThreshold+1))
	assert.Equal(t, "512 bytes (0.00 MiB)", FormatSize(512))
}
