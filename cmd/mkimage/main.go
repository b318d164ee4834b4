// Command mkimage writes a disk image with one FAT32 partition and copies a
// host directory into it. The images are fixtures for gofat32.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aligator/gofat32"
	"github.com/canonical/go-flags"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/spf13/afero"
)

// FAT32 needs at least 65525 clusters, with one sector per cluster that is
// a bit more than 32 MiB.
const minSizeMiB = 33

type options struct {
	Size           int64  `short:"s" long:"size" default:"40" description:"Volume size in MiB"`
	PartitionStart int64  `short:"p" long:"partition-start" default:"2048" description:"First sector of the partition"`
	Label          string `short:"L" long:"label" default:"GOFAT32" description:"Volume label"`

	Positional struct {
		Image  string `positional-arg-name:"image" required:"yes" description:"Image to create"`
		Source string `positional-arg-name:"source" description:"Directory to copy into the volume"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := create(afero.NewOsFs(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func create(fs afero.Fs, opts options) error {
	if opts.Size < minSizeMiB {
		return fmt.Errorf("a FAT32 volume needs at least %d MiB", minSizeMiB)
	}
	size := opts.Size * 1024 * 1024
	start := opts.PartitionStart * gofat32.SectorSize

	img, err := fs.Create(opts.Positional.Image)
	if err != nil {
		return err
	}
	defer img.Close()
	if err := img.Truncate(start + size); err != nil {
		return err
	}

	vol, err := fat32.Create(img, size, start, gofat32.SectorSize, opts.Label)
	if err != nil {
		return fmt.Errorf("cannot format %s: %w", opts.Positional.Image, err)
	}
	if opts.Positional.Source == "" {
		return nil
	}
	return populate(fs, opts.Positional.Source, vol)
}

// populate copies the tree below src into the root of vol.
func populate(fs afero.Fs, src string, vol filesystem.FileSystem) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := "/" + filepath.ToSlash(rel)

		if info.IsDir() {
			return vol.Mkdir(target)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		in, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := vol.OpenFile(target, os.O_CREATE|os.O_RDWR)
		if err != nil {
			return fmt.Errorf("%s: %w", target, err)
		}
		_, err = io.Copy(out, in)
		// fat32 files are closable, the filesystem.File interface is not
		if closer, ok := out.(io.Closer); ok {
			if closeErr := closer.Close(); err == nil {
				err = closeErr
			}
		}
		return err
	})
}
