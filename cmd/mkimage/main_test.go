package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/aligator/gofat32"
	"github.com/diskfs/go-diskfs/filesystem"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/BOOT/GRUB", 0755))
	require.NoError(t, afero.WriteFile(fs, "/src/KERNEL.BIN", []byte("kernel"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/BOOT/GRUB/GRUB.CFG", []byte("menuentry"), 0644))

	opts := options{Size: 40, PartitionStart: 2048, Label: "FIXTURE"}
	opts.Positional.Image = "disk.img"
	opts.Positional.Source = "/src"
	require.NoError(t, create(fs, opts))

	dev, err := gofat32.OpenFileDevice(fs, "disk.img", false)
	require.NoError(t, err)
	defer dev.Close()
	log, _ := logtest.NewNullLogger()
	fsys, err := gofat32.Mount(dev, 2048, gofat32.WithLogger(log))
	require.NoError(t, err)
	require.Equal(t, "FIXTURE", fsys.Label())

	boot, err := fsys.Find(fsys.RootCluster(), "BOOT")
	require.NoError(t, err)
	grub, err := fsys.Find(boot.Cluster(), "GRUB")
	require.NoError(t, err)
	f, err := fsys.Open(grub.Cluster(), "GRUB.CFG")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "menuentry", string(content))

	_, err = fsys.Find(fsys.RootCluster(), "KERNEL.BIN")
	require.NoError(t, err)
}

func TestCreate_TooSmall(t *testing.T) {
	opts := options{Size: 8, PartitionStart: 2048}
	opts.Positional.Image = "disk.img"
	require.Error(t, create(afero.NewMemMapFs(), opts))
}

type memFile struct {
	bytes.Buffer
	closed bool
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	return 0, nil
}

func (f *memFile) Close() error {
	f.closed = true
	return nil
}

type memVolume struct {
	dirs  []string
	files map[string]*memFile
}

func (v *memVolume) Type() filesystem.Type                 { return filesystem.TypeFat32 }
func (v *memVolume) ReadDir(string) ([]os.FileInfo, error) { return nil, nil }
func (v *memVolume) Label() string                         { return "" }
func (v *memVolume) SetLabel(string) error                 { return nil }

func (v *memVolume) Mkdir(path string) error {
	v.dirs = append(v.dirs, path)
	return nil
}

func (v *memVolume) OpenFile(path string, flag int) (filesystem.File, error) {
	f := &memFile{}
	v.files[path] = f
	return f, nil
}

func TestPopulate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/A", 0755))
	require.NoError(t, afero.WriteFile(fs, "/src/A/ONE.TXT", []byte("one"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/TWO.TXT", []byte("two"), 0644))

	vol := &memVolume{files: map[string]*memFile{}}
	require.NoError(t, populate(fs, "/src", vol))

	require.Equal(t, []string{"/A"}, vol.dirs)
	require.Len(t, vol.files, 2)
	for path, f := range vol.files {
		require.True(t, f.closed, "%s was not closed", path)
	}
	require.Equal(t, "one", vol.files["/A/ONE.TXT"].String())
	require.Equal(t, "two", vol.files["/TWO.TXT"].String())
}
