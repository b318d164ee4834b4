package gofat32

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/gofat32/checkpoint"
)

// These errors may occur while processing a file.
var (
	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
	ErrReadDir  = errors.New("could not read the directory")
)

// fatFileFs provides all methods needed from a fat filesystem for File.
// It mainly exists to be able to mock the Fs in tests.
// Generated mock using mockgen:
//  mockgen -source=file.go -destination=file_mock.go -package gofat32
type fatFileFs interface {
	readFileAt(cluster uint32, fileSize int64, offset int64, readSize int64) ([]byte, error)
	readDir(cluster uint32) ([]DirEntry, error)
}

// File is a read-only handle of a file or directory on the volume.
// For directories the offset counts entries instead of bytes.
type File struct {
	fs   fatFileFs
	name string

	isDirectory bool
	isReadOnly  bool
	isHidden    bool
	isSystem    bool

	firstCluster uint32
	stat         os.FileInfo
	offset       int64
}

func (fs *Fs) openEntry(entry DirEntry) *File {
	return &File{
		fs:           fs,
		name:         entry.Name,
		isDirectory:  entry.IsDir(),
		isReadOnly:   entry.Attribute&AttrReadOnly != 0,
		isHidden:     entry.Attribute&AttrHidden != 0,
		isSystem:     entry.Attribute&AttrSystem != 0,
		firstCluster: entry.Cluster(),
		stat:         entry.FileInfo(),
	}
}

func (f *File) Close() error {
	f.fs = nil
	f.name = ""
	f.isDirectory = false
	f.isReadOnly = false
	f.isHidden = false
	f.isSystem = false
	f.firstCluster = 0
	f.stat = nil
	f.offset = 0

	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if p == nil {
		return 0, nil
	}
	if f.isDirectory {
		return 0, checkpoint.Wrap(syscall.EISDIR, ErrReadFile)
	}

	// Nothing left once the size has been reached.
	if f.stat.Size() <= f.offset {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.firstCluster, f.stat.Size(), f.offset, int64(len(p)))
	copy(p, data)

	// Advance even on errors, so a retry does not return the same bytes twice.
	_, seekErr := f.Seek(int64(len(data)), io.SeekCurrent)

	if err != nil {
		return len(data), checkpoint.Wrap(err, ErrReadFile)
	}
	if seekErr != nil {
		return len(data), checkpoint.Wrap(seekErr, ErrReadFile)
	}

	return len(data), nil
}

// ReadAt reads len(p) bytes at off without moving the offset used by Read.
// It returns io.EOF if the file ends before p is filled.
func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if p == nil {
		return 0, nil
	}
	if f.isDirectory {
		return 0, checkpoint.Wrap(syscall.EISDIR, ErrReadFile)
	}
	if off < 0 {
		return 0, checkpoint.Wrap(syscall.EINVAL, ErrReadFile)
	}
	if f.stat.Size() <= off {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.firstCluster, f.stat.Size(), off, int64(len(p)))
	copy(p, data)

	if err != nil {
		return len(data), checkpoint.Wrap(err, ErrReadFile)
	}
	if len(data) < len(p) {
		return len(data), io.EOF
	}
	return len(data), nil
}

// Seek jumps to a specific offset in the file. This affects all Read operation except ReadAt.
// May return a syscall.EINVAL error if the whence value is invalid or the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = f.stat.Size() + offset
	default:
		return 0, checkpoint.Wrap(fmt.Errorf("%w, whence: %v", syscall.EINVAL, whence), ErrSeekFile)
	}

	if offset < 0 || offset > f.stat.Size() {
		return 0, checkpoint.Wrap(fmt.Errorf("%w, offset: %v, size: %v", syscall.EINVAL, offset, f.stat.Size()), ErrSeekFile)
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Name() string {
	return f.name
}

// Readdir reads the contents of a directory, without "." and "..".
// For count > 0 at most count entries are returned and io.EOF once nothing
// is left. For count <= 0 all remaining entries are returned.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.isDirectory {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	// TODO: Pass count down to List and stop early instead of reading the whole directory each call.
	content, err := f.fs.readDir(f.firstCluster)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	entries := content[:0]
	for _, entry := range content {
		if entry.Name != "." && entry.Name != ".." {
			entries = append(entries, entry)
		}
	}

	if f.offset > int64(len(entries)) {
		f.offset = int64(len(entries))
	}
	entries = entries[f.offset:]

	if count > 0 {
		if len(entries) == 0 {
			return nil, io.EOF
		}
		if len(entries) > count {
			entries = entries[:count]
		}
	}
	f.offset += int64(len(entries))

	result := make([]os.FileInfo, len(entries))
	for i := range entries {
		result[i] = entries[i].FileInfo()
	}
	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	return f.stat, nil
}
