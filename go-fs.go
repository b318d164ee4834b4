package gofat32

import (
	"errors"
	"io/fs"
	"strings"
)

type GoDirEntry struct {
	fs.FileInfo
}

func (g GoDirEntry) Type() fs.FileMode {
	return g.FileInfo.Mode().Type()
}

func (g GoDirEntry) Info() (fs.FileInfo, error) {
	return g.FileInfo, nil
}

type GoFile struct {
	*File
}

func (g GoFile) ReadDir(n int) ([]fs.DirEntry, error) {
	entries, err := g.File.Readdir(n)

	goEntries := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		goEntries[i] = GoDirEntry{e}
	}

	return goEntries, err
}

// GoFs exposes a mounted volume as fs.FS, rooted at its root directory.
// Paths are resolved with Find, so 8.3 names match case-insensitively.
type GoFs struct {
	fsys *Fs
}

// NewGoFS wraps fsys, which must already be mounted.
func NewGoFS(fsys *Fs) *GoFs {
	return &GoFs{fsys: fsys}
}

func (g GoFs) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	root, err := g.fsys.OpenDir(g.fsys.RootCluster())
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if name == "." {
		return GoFile{root}, nil
	}

	dir := root.firstCluster
	parts := strings.Split(name, "/")
	for _, part := range parts[:len(parts)-1] {
		entry, err := g.find(name, dir, part)
		if err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			return nil, &fs.PathError{Op: "open", Path: name, Err: ErrNotDir}
		}
		dir = entry.Cluster()
	}

	entry, err := g.find(name, dir, parts[len(parts)-1])
	if err != nil {
		return nil, err
	}
	return GoFile{g.fsys.openEntry(entry)}, nil
}

func (g GoFs) find(name string, dir uint32, part string) (DirEntry, error) {
	entry, err := g.fsys.Find(dir, part)
	if errors.Is(err, ErrNotFound) {
		return entry, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if err != nil {
		return entry, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return entry, nil
}
