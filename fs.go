// Package gofat32 reads FAT32 volumes from a sector addressable Device.
//
// A Fs is the single owner of the mounted volume: its geometry, the current
// directory and the one scratch buffer every sector read goes through.
// It is not safe for concurrent use, and no operation may be started from
// inside an EntryFunc while a directory walk is in flight.
package gofat32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/sirupsen/logrus"
)

// These errors may occur while mounting a volume.
var (
	ErrReadBootSector  = errors.New("could not read the boot sector")
	ErrSectorSize      = errors.New("unsupported sector size")
	ErrNotFAT32        = errors.New("not a FAT32 volume")
	ErrInvalidGeometry = errors.New("invalid FAT geometry")
	ErrTooFewClusters  = errors.New("too few clusters for FAT32")
	ErrRootCluster     = errors.New("invalid root directory cluster")
)

// These errors may occur on a mounted Fs.
var (
	ErrNotMounted     = errors.New("no volume mounted")
	ErrInvalidCluster = errors.New("invalid directory cluster")
	ErrReentrant      = errors.New("filesystem accessed during a directory walk")
	ErrLBARange       = errors.New("sector beyond 32 bit addressing")
)

const (
	// MinClusters is the smallest cluster count of a FAT32 volume.
	MinClusters = 65525
	// MaxClusters is the largest, entries above it are reserved values.
	MaxClusters = 0x0FFFFFF6

	scratchSectors = 64
	scratchSize    = scratchSectors * SectorSize
)

// VolumeInfo is the geometry of a mounted volume. All LBAs are volume
// sectors of BPB.BytesPerSector bytes.
type VolumeInfo struct {
	PartitionStart  uint32
	BPB             BPB
	FAT32           FAT32SpecificData
	FATStart        uint32
	DataStart       uint32
	SectorsPerFAT   uint32
	TotalSectors    uint32
	TotalClusters   uint32
	BytesPerCluster uint32
}

// Fs is a mounted (or not yet mounted) FAT32 volume.
type Fs struct {
	dev Device
	log logrus.FieldLogger

	mounted bool
	info    VolumeInfo
	cwd     uint32

	scratch []byte
	busy    bool
}

// Option configures a Fs.
type Option func(fs *Fs)

// WithLogger sets the logger used for diagnostics. The default is the
// logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(fs *Fs) {
		fs.log = log
	}
}

// New creates an unmounted Fs on top of dev.
func New(dev Device, opts ...Option) *Fs {
	fs := &Fs{
		dev:     dev,
		log:     logrus.StandardLogger(),
		scratch: make([]byte, scratchSize),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Mount creates a Fs and mounts the volume starting at partitionStart.
func Mount(dev Device, partitionStart uint32, opts ...Option) (*Fs, error) {
	fs := New(dev, opts...)
	if err := fs.Mount(partitionStart); err != nil {
		return nil, err
	}
	return fs, nil
}

// Mount reads and validates the boot sector at partitionStart.
// Mounting an already mounted Fs does nothing, the current directory is kept.
// A failed mount leaves the Fs unmounted.
func (fs *Fs) Mount(partitionStart uint32) error {
	if err := fs.acquire(); err != nil {
		return err
	}
	defer fs.release()

	if fs.mounted {
		return nil
	}

	log := fs.log.WithField("partition", partitionStart)
	info, err := fs.parseBootSector(partitionStart)
	if err != nil {
		log.WithError(err).Error("mount failed")
		return err
	}

	fs.info = info
	fs.cwd = uint32(info.FAT32.RootCluster)
	fs.mounted = true

	log.WithFields(logrus.Fields{
		"clusters":     info.TotalClusters,
		"cluster_size": info.BytesPerCluster,
		"root":         fs.cwd,
	}).Info("volume mounted")
	return nil
}

func (fs *Fs) parseBootSector(partitionStart uint32) (VolumeInfo, error) {
	info := VolumeInfo{PartitionStart: partitionStart}

	sector := fs.scratch[:SectorSize]
	if err := fs.dev.ReadSectors(partitionStart, 1, sector); err != nil {
		return info, checkpoint.Wrap(err, ErrReadBootSector)
	}

	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &info.BPB); err != nil {
		return info, checkpoint.Wrap(err, ErrReadBootSector)
	}
	if err := binary.Read(bytes.NewReader(info.BPB.FATSpecificData[:]), binary.LittleEndian, &info.FAT32); err != nil {
		return info, checkpoint.Wrap(err, ErrReadBootSector)
	}
	bpb := &info.BPB

	if signature := binary.LittleEndian.Uint16(sector[bootSignatureOffset:]); signature != bootSignature {
		fs.log.WithField("signature", signature).Warn("boot sector signature missing")
	}

	switch bpb.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return info, checkpoint.Wrapf(ErrSectorSize, "%d bytes per sector", bpb.BytesPerSector)
	}

	if bpb.RootEntryCount != 0 || bpb.FATSize16 != 0 {
		return info, checkpoint.Wrapf(ErrNotFAT32, "root entries %d, 16 bit FAT size %d", bpb.RootEntryCount, bpb.FATSize16)
	}

	spc := uint32(bpb.SectorsPerCluster)
	if bpb.NumFATs == 0 {
		return info, checkpoint.Wrapf(ErrInvalidGeometry, "no FAT")
	}
	if spc == 0 || spc&(spc-1) != 0 {
		return info, checkpoint.Wrapf(ErrInvalidGeometry, "%d sectors per cluster", spc)
	}
	if info.FAT32.FatSize == 0 {
		return info, checkpoint.Wrapf(ErrInvalidGeometry, "empty FAT")
	}

	info.SectorsPerFAT = info.FAT32.FatSize
	info.TotalSectors = bpb.TotalSectors32
	if info.TotalSectors == 0 {
		info.TotalSectors = uint32(bpb.TotalSectors16)
	}

	// computed wide, a corrupt FAT size must not wrap around
	metadata := uint64(bpb.ReservedSectorCount) + uint64(bpb.NumFATs)*uint64(info.SectorsPerFAT)
	if uint64(partitionStart)+metadata > 0xFFFFFFFF {
		return info, checkpoint.Wrapf(ErrInvalidGeometry, "data region beyond 32 bit addressing")
	}
	info.FATStart = partitionStart + uint32(bpb.ReservedSectorCount)
	info.DataStart = info.FATStart + uint32(bpb.NumFATs)*info.SectorsPerFAT

	if uint64(info.TotalSectors) <= metadata {
		return info, checkpoint.Wrapf(ErrTooFewClusters, "%d sectors do not cover %d metadata sectors", info.TotalSectors, metadata)
	}
	info.TotalClusters = (info.TotalSectors - uint32(metadata)) / spc
	if info.TotalClusters < MinClusters {
		return info, checkpoint.Wrapf(ErrTooFewClusters, "%d clusters", info.TotalClusters)
	}
	if info.TotalClusters > MaxClusters {
		return info, checkpoint.Wrapf(ErrInvalidGeometry, "%d clusters", info.TotalClusters)
	}
	if entries := uint64(info.SectorsPerFAT) * uint64(bpb.BytesPerSector) / fatEntrySize; entries < uint64(info.TotalClusters)+2 {
		return info, checkpoint.Wrapf(ErrInvalidGeometry, "FAT holds %d entries for %d clusters", entries, info.TotalClusters)
	}
	if end := uint64(info.DataStart) + uint64(info.TotalClusters)*uint64(spc); end > 0xFFFFFFFF+1 {
		return info, checkpoint.Wrapf(ErrInvalidGeometry, "data region beyond 32 bit addressing")
	}
	info.BytesPerCluster = uint32(bpb.BytesPerSector) * spc

	root := uint32(info.FAT32.RootCluster)
	if root < 2 || root >= info.TotalClusters+2 {
		return info, checkpoint.Wrapf(ErrRootCluster, "cluster %d", root)
	}

	return info, nil
}

// Info returns the geometry of the mounted volume.
func (fs *Fs) Info() (VolumeInfo, error) {
	if !fs.mounted {
		return VolumeInfo{}, ErrNotMounted
	}
	return fs.info, nil
}

// Label returns the volume label of the boot sector.
func (fs *Fs) Label() string {
	return strings.TrimRight(string(fs.info.FAT32.BSVolumeLabel[:]), " \x00")
}

// RootCluster is the first cluster of the root directory, 0 if unmounted.
func (fs *Fs) RootCluster() uint32 {
	return uint32(fs.info.FAT32.RootCluster)
}

// CurrentDir is the cluster of the current directory, 0 if unmounted.
func (fs *Fs) CurrentDir() uint32 {
	return fs.cwd
}

// SetCurrentDir changes the current directory. The cluster is only range
// checked, it is not read.
func (fs *Fs) SetCurrentDir(cluster uint32) error {
	if fs.busy {
		return ErrReentrant
	}
	if !fs.mounted {
		return ErrNotMounted
	}
	if !fs.validCluster(cluster) {
		return checkpoint.Wrapf(ErrInvalidCluster, "cluster %d", cluster)
	}
	fs.cwd = cluster
	return nil
}

// acquire claims the scratch buffer for one operation.
func (fs *Fs) acquire() error {
	if fs.busy {
		return ErrReentrant
	}
	fs.busy = true
	return nil
}

func (fs *Fs) release() {
	fs.busy = false
}

// readSectors reads count volume sectors starting at the volume LBA lba.
func (fs *Fs) readSectors(lba uint32, count uint32, buf []byte) error {
	scale := uint32(fs.info.BPB.BytesPerSector) / SectorSize
	n := count * scale
	if n > 0xFFFF || int(n)*SectorSize > len(buf) {
		return checkpoint.Wrapf(ErrClusterTooLarge, "%d device sectors", n)
	}

	start := uint64(fs.info.PartitionStart) + uint64(lba-fs.info.PartitionStart)*uint64(scale)
	if start+uint64(n) > 0xFFFFFFFF+1 {
		return checkpoint.Wrapf(ErrLBARange, "volume sector %d", lba)
	}
	fs.log.WithFields(logrus.Fields{"lba": start, "count": n}).Debug("read sectors")
	return fs.dev.ReadSectors(uint32(start), uint16(n), buf[:int(n)*SectorSize])
}
