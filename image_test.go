package gofat32_test

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"testing"

	"github.com/aligator/gofat32"
	"github.com/aligator/gofat32/ide"
	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	partitionStart = 2048
	volumeSize     = 40 * 1024 * 1024
)

var bigFile = bytes.Repeat([]byte("gofat32 "), 375) // 3000 bytes, 6 clusters

// newImage formats a FAT32 volume at partitionStart of an in-memory disk.
func newImage(t *testing.T) afero.File {
	t.Helper()
	img, err := afero.NewMemMapFs().Create("disk.img")
	require.NoError(t, err)
	require.NoError(t, img.Truncate(partitionStart*gofat32.SectorSize+volumeSize))

	vol, err := fat32.Create(img, volumeSize, partitionStart*gofat32.SectorSize, gofat32.SectorSize, "GOFAT32")
	require.NoError(t, err)

	write := func(path string, content []byte) {
		f, err := vol.OpenFile(path, os.O_CREATE|os.O_RDWR)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, vol.Mkdir("/DOCS"))
	write("/HELLO.TXT", []byte("hello world\n"))
	write("/DOCS/BIG.BIN", bigFile)
	write("/longfilename.txt", []byte("long"))
	return img
}

func nullLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

func names(entries []gofat32.DirEntry) []string {
	result := make([]string, len(entries))
	for i, e := range entries {
		result[i] = e.Name
	}
	return result
}

func TestImage(t *testing.T) {
	tests := []struct {
		name   string
		device func(t *testing.T, img afero.File) gofat32.Device
	}{
		{
			name: "image file",
			device: func(t *testing.T, img afero.File) gofat32.Device {
				return gofat32.NewFileDevice(img)
			},
		},
		{
			name: "ATA emulator",
			device: func(t *testing.T, img afero.File) gofat32.Device {
				emu := ide.NewEmulator(img)
				emu.BusyPolls = 2
				return ide.New(emu, ide.WithLogger(nullLogger()))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys, err := gofat32.Mount(tt.device(t, newImage(t)), partitionStart, gofat32.WithLogger(nullLogger()))
			require.NoError(t, err)

			info, err := fsys.Info()
			require.NoError(t, err)
			require.GreaterOrEqual(t, info.TotalClusters, uint32(gofat32.MinClusters))
			require.Equal(t, "GOFAT32", fsys.Label())
			require.Equal(t, fsys.RootCluster(), fsys.CurrentDir())

			root, err := fsys.ReadDir(fsys.RootCluster())
			require.NoError(t, err)
			require.ElementsMatch(t, []string{"DOCS", "HELLO.TXT", "LONGFI~1.TXT"}, names(root))

			docs, err := fsys.Find(fsys.RootCluster(), "docs")
			require.NoError(t, err)
			require.True(t, docs.IsDir())

			inner, err := fsys.ReadDir(docs.Cluster())
			require.NoError(t, err)
			require.Contains(t, names(inner), "BIG.BIN")

			parent, err := fsys.Find(docs.Cluster(), "..")
			require.NoError(t, err)
			require.Equal(t, fsys.RootCluster(), parent.Cluster())

			require.NoError(t, fsys.SetCurrentDir(docs.Cluster()))
			file, err := fsys.Open(fsys.CurrentDir(), "BIG.BIN")
			require.NoError(t, err)
			got, err := io.ReadAll(file)
			require.NoError(t, err)
			require.Equal(t, bigFile, got)

			hello, err := fs.ReadFile(gofat32.NewGoFS(fsys), "HELLO.TXT")
			require.NoError(t, err)
			require.Equal(t, "hello world\n", string(hello))
		})
	}
}

func TestImage_DriverMetrics(t *testing.T) {
	emu := ide.NewEmulator(newImage(t))
	metrics := ide.NewMetrics(prometheus.NewRegistry())
	dev := ide.New(emu, ide.WithLogger(nullLogger()), ide.WithMetrics(metrics))

	fsys, err := gofat32.Mount(dev, partitionStart, gofat32.WithLogger(nullLogger()))
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.SectorsRead))

	found, err := fsys.List(fsys.RootCluster(), func(gofat32.EntryHeader, string) error { return nil })
	require.NoError(t, err)
	require.True(t, found)
	require.Greater(t, testutil.ToFloat64(metrics.SectorsRead), float64(1))
}

func TestImage_DriveFailure(t *testing.T) {
	emu := ide.NewEmulator(newImage(t))
	fsys, err := gofat32.Mount(ide.New(emu, ide.WithLogger(nullLogger())), partitionStart, gofat32.WithLogger(nullLogger()))
	require.NoError(t, err)

	emu.Fault = func(cmd uint8, lba uint32) uint8 { return ide.StatusErr }

	found, err := fsys.List(fsys.RootCluster(), func(gofat32.EntryHeader, string) error { return nil })
	require.False(t, found)
	require.ErrorIs(t, err, gofat32.ErrReadDir)
	require.ErrorIs(t, err, ide.ErrDeviceError)
}
