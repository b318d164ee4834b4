package gofat32

import (
	"errors"
	"io"
	"os"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/spf13/afero"
)

// SectorSize is the transfer unit of every Device.
const SectorSize = 512

// Device is a sector addressable block device.
//
// Both calls move exactly count*SectorSize bytes and block until done.
// Any non-nil error is a failure of the whole call; the filesystem does not
// look at the cause.
type Device interface {
	ReadSectors(lba uint32, count uint16, buf []byte) error
	WriteSectors(lba uint32, count uint16, buf []byte) error
}

// These errors may occur while accessing a FileDevice.
var (
	ErrDeviceRead  = errors.New("could not read sectors from the image")
	ErrDeviceWrite = errors.New("could not write sectors to the image")
)

// FileDevice is a Device backed by a disk image.
type FileDevice struct {
	file afero.File
}

// NewFileDevice uses an already opened image.
func NewFileDevice(file afero.File) *FileDevice {
	return &FileDevice{file: file}
}

// OpenFileDevice opens the image at path on fs.
func OpenFileDevice(fs afero.Fs, path string, writable bool) (*FileDevice, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	file, err := fs.OpenFile(path, flag, 0)
	if err != nil {
		return nil, checkpoint.From(err)
	}
	return NewFileDevice(file), nil
}

func (d *FileDevice) ReadSectors(lba uint32, count uint16, buf []byte) error {
	size := int(count) * SectorSize
	if len(buf) < size {
		return checkpoint.Wrap(io.ErrShortBuffer, ErrDeviceRead)
	}

	n, err := d.file.ReadAt(buf[:size], int64(lba)*SectorSize)
	if n == size {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	// Wrap lets io.ErrUnexpectedEOF through unchanged, add the class here.
	return checkpoint.Wrap(wrapEOF(err), ErrDeviceRead)
}

func (d *FileDevice) WriteSectors(lba uint32, count uint16, buf []byte) error {
	size := int(count) * SectorSize
	if len(buf) < size {
		return checkpoint.Wrap(io.ErrShortBuffer, ErrDeviceWrite)
	}

	if _, err := d.file.WriteAt(buf[:size], int64(lba)*SectorSize); err != nil {
		return checkpoint.Wrap(err, ErrDeviceWrite)
	}
	return checkpoint.Wrap(d.file.Sync(), ErrDeviceWrite)
}

// Close closes the image.
func (d *FileDevice) Close() error {
	return d.file.Close()
}

type eofError struct{ err error }

func (e eofError) Error() string { return "short image: " + e.err.Error() }
func (e eofError) Unwrap() error { return e.err }

func wrapEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return eofError{err}
	}
	return err
}
