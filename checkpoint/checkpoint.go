// Package checkpoint decorates errors with the location they passed through,
// so a failure deep inside a sector transfer reads like a short trace once it
// reaches the shell.
//
// A checkpoint carries two errors: the cause it wraps and a classification.
// errors.Is and errors.As match the classification first and then continue
// down the cause chain, so both
//
//	errors.Is(err, gofat32.ErrReadDir)
//	errors.Is(err, ide.ErrBusyTimeout)
//
// hold for a directory read that failed because the drive never cleared BSY.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From marks err with the caller location. It returns nil for nil.
func From(err error) error {
	if err == nil {
		return nil
	}
	if passthrough(err) {
		return err
	}
	return newCheckpoint(err, nil)
}

// Wrap marks cause with the caller location and classifies it as err.
// It returns nil if cause is nil, which allows
//
//	return checkpoint.Wrap(device.ReadSectors(lba, 1, buf), ErrReadFAT)
//
// on paths that may or may not have failed.
func Wrap(cause, err error) error {
	if cause == nil {
		return nil
	}
	if passthrough(cause) {
		return cause
	}
	return newCheckpoint(cause, err)
}

// Wrapf is Wrap with a formatted cause.
func Wrapf(err error, format string, args ...interface{}) error {
	return newCheckpoint(fmt.Errorf(format, args...), err)
}

// io.EOF has to reach io.Reader callers unwrapped.
// https://github.com/golang/go/issues/39155
func passthrough(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

type checkpoint struct {
	cause error
	class error

	location string
}

func newCheckpoint(cause, class error) *checkpoint {
	location := "unknown"
	// skip newCheckpoint and the exported helper
	if _, file, line, ok := runtime.Caller(2); ok {
		location = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	return &checkpoint{
		cause:    cause,
		class:    class,
		location: location,
	}
}

func (c *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString(c.location)
	b.WriteString(": ")
	if c.class != nil {
		b.WriteString(c.class.Error())
		b.WriteString(": ")
	}

	// nested checkpoints continue on their own line
	if _, ok := c.cause.(*checkpoint); ok {
		b.WriteString("\n\t")
		b.WriteString(strings.ReplaceAll(c.cause.Error(), "\n", "\n\t"))
	} else {
		b.WriteString(c.cause.Error())
	}
	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.cause
}

func (c *checkpoint) Is(target error) bool {
	return c.class != nil && errors.Is(c.class, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.class != nil && errors.As(c.class, target)
}
