// Package outdir owns the on-disk tree a support dump is collected into.
//
// Every relative path in a Tree is handed out at most once, either by
// WriteFile or by Reserve, so no collection step can overwrite the output of
// another.
package outdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	// ErrAlreadyWritten is returned when a path is written or reserved twice.
	ErrAlreadyWritten = errors.New("path already written")
	// ErrOutsideTree is returned for paths that escape the tree root.
	ErrOutsideTree = errors.New("path escapes output tree")
)

// Tree is a write-once directory hierarchy rooted at Root.
type Tree struct {
	root    string
	written map[string]struct{}
}

// Create makes root (and its parents) and returns a Tree for it. Creating a
// tree over an existing non-empty directory is refused so a run never mixes
// its files with an earlier one.
func Create(root string) (*Tree, error) {
	if entries, err := os.ReadDir(root); err == nil && len(entries) > 0 {
		return nil, fmt.Errorf("output directory %s already exists and is not empty", root)
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Tree{root: root, written: make(map[string]struct{})}, nil
}

// Root returns the absolute root of the tree.
func (t *Tree) Root() string {
	return t.root
}

// WriteFile writes data to rel, creating parent directories as needed.
func (t *Tree) WriteFile(rel string, data []byte) error {
	path, err := t.Reserve(rel)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// OpenFile claims rel and opens it for writing. The caller closes the file.
func (t *Tree) OpenFile(rel string) (*os.File, error) {
	path, err := t.Reserve(rel)
	if err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
}

// Reserve claims rel for an external writer (for example a cluster CLI copy)
// and returns its absolute path. Parent directories are created.
func (t *Tree) Reserve(rel string) (string, error) {
	key, err := t.key(rel)
	if err != nil {
		return "", err
	}
	if _, ok := t.written[key]; ok {
		return "", fmt.Errorf("%s: %w", key, ErrAlreadyWritten)
	}
	path := filepath.Join(t.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	t.written[key] = struct{}{}
	return path, nil
}

// Release forgets a reservation whose writer produced nothing, so the tree
// does not claim a file that was never created.
func (t *Tree) Release(rel string) {
	if key, err := t.key(rel); err == nil {
		delete(t.written, key)
	}
}

// Written returns the claimed paths in slash form, sorted.
func (t *Tree) Written() []string {
	out := make([]string, 0, len(t.written))
	for k := range t.written {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Tree) key(rel string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	if clean == "." || filepath.IsAbs(rel) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideTree)
	}
	return clean, nil
}
