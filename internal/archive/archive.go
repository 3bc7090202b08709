// Package archive bundles a collected output directory into a single
// .tar.gz whose entries are rooted at the directory's own name, so the
// archive always extracts into one self-contained folder.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SizeThreshold is the largest archive most support mail systems accept.
const SizeThreshold int64 = 25 * 1024 * 1024

// Extension is appended to the directory name to form the archive name.
const Extension = ".tar.gz"

// SizeClass classifies an archive against SizeThreshold.
type SizeClass string

const (
	// SizeNormal archives can be attached to a support case directly.
	SizeNormal SizeClass = "normal"
	// SizeOversize archives need an alternate transfer channel.
	SizeOversize SizeClass = "oversize"
)

// Classify returns SizeOversize for archives strictly larger than
// SizeThreshold.
func Classify(size int64) SizeClass {
	if size > SizeThreshold {
		return SizeOversize
	}
	return SizeNormal
}

var printer = message.NewPrinter(language.English)

// FormatSize renders size as "12,345,678 bytes (11.77 MiB)".
func FormatSize(size int64) string {
	return printer.Sprintf("%d bytes (%.2f MiB)", size, float64(size)/1024/1024)
}

// Result describes a created archive.
type Result struct {
	Path    string
	Size    int64
	Class   SizeClass
	Removed bool
}

// Archiver creates support dump archives.
type Archiver struct {
	// DeleteAfter removes the source directory after a successful archive.
	DeleteAfter bool
}

// Create writes srcDir to <srcDir>.tar.gz.
func (a Archiver) Create(srcDir string) (Result, error) {
	srcDir = filepath.Clean(srcDir)
	info, err := os.Stat(srcDir)
	if err != nil {
		return Result{}, fmt.Errorf("cannot archive %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("cannot archive %s: not a directory", srcDir)
	}

	archivePath := srcDir + Extension
	slog.Info("creating archive", "path", archivePath)

	if err := writeTarGz(srcDir, archivePath); err != nil {
		return Result{}, fmt.Errorf("failed to create archive: %w", err)
	}

	res := Result{Path: archivePath}
	if st, err := os.Stat(archivePath); err == nil {
		res.Size = st.Size()
		res.Class = Classify(res.Size)
	} else {
		slog.Warn("archive size unavailable", "path", archivePath, "error", err)
	}

	slog.Info("archive created", "path", archivePath, "size", FormatSize(res.Size))
	if res.Class == SizeOversize {
		slog.Warn("archive may be too large to attach to a support case",
			"size", FormatSize(res.Size), "threshold", FormatSize(SizeThreshold))
		slog.Warn("request a file share link from support to upload this archive")
	}

	if a.DeleteAfter {
		if err := os.RemoveAll(srcDir); err != nil {
			slog.Warn("failed to delete directory after archiving; files remain on disk",
				"dir", srcDir, "error", err)
		} else {
			res.Removed = true
			slog.Info("removed collected directory", "dir", srcDir)
		}
	}
	return res, nil
}

func writeTarGz(srcDir, archivePath string) (err error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	base := filepath.Base(srcDir)
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return addEntry(tw, path, filepath.ToSlash(filepath.Join(base, rel)), d)
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	fi, err := d.Info()
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() && !fi.IsDir() {
		slog.Debug("skipping non-regular file", "path", path)
		return nil
	}

	header, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return err
	}
	header.Name = name
	if fi.IsDir() {
		header.Name += "/"
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if fi.IsDir() {
		return nil
	}

	data, err := os.Open(path)
	if err != nil {
		return err
	}
	defer data.Close()

	_, err = io.CopyN(tw, data, header.Size)
	return err
}
