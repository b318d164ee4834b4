package gofat32

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/sirupsen/logrus"
)

// These errors may occur while following a cluster chain.
var (
	ErrClusterRange     = errors.New("cluster out of range")
	ErrReadFAT          = errors.New("could not read the FAT")
	ErrTranslateCluster = errors.New("could not translate cluster to a sector")
	ErrBadChain         = errors.New("cluster chain contains a bad cluster")
	ErrFreeCluster      = errors.New("cluster chain contains a free cluster")
	ErrShortChain       = errors.New("cluster chain ends before the file")
	ErrClusterTooLarge  = errors.New("cluster does not fit into the sector buffer")
	ErrChainLoop        = errors.New("cluster chain is longer than the volume")
)

const (
	fatEntrySize = 4
	fatMask      = 0x0FFFFFFF
	fatBad       = 0x0FFFFFF7
	fatEOC       = 0x0FFFFFF8
)

// fatEntry is a raw 32 bit value of the FAT. Only the low 28 bits count.
type fatEntry uint32

func (e fatEntry) Value() uint32 {
	return uint32(e) & fatMask
}

func (e fatEntry) IsFree() bool {
	return e.Value() == 0
}

func (e fatEntry) IsBad() bool {
	return e.Value() == fatBad
}

func (e fatEntry) IsEOF() bool {
	return e.Value() >= fatEOC
}

func (e fatEntry) IsNextCluster() bool {
	return !e.IsFree() && !e.IsBad() && !e.IsEOF()
}

// LinkKind classifies a FAT entry.
type LinkKind int

const (
	// LinkNext means the chain continues at Link.Cluster.
	LinkNext LinkKind = iota
	// LinkEnd is a regular end of chain.
	LinkEnd
	// LinkBad marks a bad cluster.
	LinkBad
	// LinkFree is a free cluster, which is corruption inside a chain.
	LinkFree
)

func (k LinkKind) String() string {
	switch k {
	case LinkNext:
		return "next"
	case LinkEnd:
		return "end"
	case LinkBad:
		return "bad"
	case LinkFree:
		return "free"
	}
	return fmt.Sprintf("LinkKind(%d)", int(k))
}

// Link is the successor of a cluster.
type Link struct {
	Kind LinkKind
	// Cluster is only set for LinkNext.
	Cluster uint32
}

func linkOf(e fatEntry) Link {
	switch {
	case e.IsEOF():
		return Link{Kind: LinkEnd}
	case e.IsBad():
		return Link{Kind: LinkBad}
	case e.IsFree():
		return Link{Kind: LinkFree}
	}
	return Link{Kind: LinkNext, Cluster: e.Value()}
}

func (fs *Fs) validCluster(cluster uint32) bool {
	return cluster >= 2 && uint64(cluster) < uint64(fs.info.TotalClusters)+2
}

// ClusterToLBA returns the first volume sector of a data cluster.
// ok is false if the volume is not mounted or the cluster is outside
// 2 <= cluster < TotalClusters+2.
func (fs *Fs) ClusterToLBA(cluster uint32) (lba uint32, ok bool) {
	if !fs.mounted || !fs.validCluster(cluster) {
		return 0, false
	}
	return fs.info.DataStart + (cluster-2)*uint32(fs.info.BPB.SectorsPerCluster), true
}

// NextCluster reads the FAT entry of cluster.
// A failed FAT read is an error and never reported as LinkEnd.
func (fs *Fs) NextCluster(cluster uint32) (Link, error) {
	if err := fs.acquire(); err != nil {
		return Link{}, err
	}
	defer fs.release()

	return fs.nextCluster(cluster)
}

func (fs *Fs) nextCluster(cluster uint32) (Link, error) {
	if !fs.mounted {
		return Link{}, ErrNotMounted
	}
	if !fs.validCluster(cluster) {
		return Link{}, checkpoint.Wrapf(ErrClusterRange, "cluster %d of %d", cluster, fs.info.TotalClusters)
	}

	bps := uint64(fs.info.BPB.BytesPerSector)
	offset := uint64(cluster) * fatEntrySize
	lba := fs.info.FATStart + uint32(offset/bps)
	within := offset % bps

	sector := fs.scratch[:bps]
	if err := fs.readSectors(lba, 1, sector); err != nil {
		fs.log.WithFields(logrus.Fields{
			"cluster": cluster,
			"lba":     lba,
		}).WithError(err).Error("FAT read failed")
		return Link{}, checkpoint.Wrap(err, ErrReadFAT)
	}

	entry := fatEntry(binary.LittleEndian.Uint32(sector[within:]))
	link := linkOf(entry)
	if link.Kind == LinkBad || link.Kind == LinkFree {
		fs.log.WithFields(logrus.Fields{
			"cluster": cluster,
			"link":    link.Kind,
		}).Warn("unexpected FAT entry")
	}
	return link, nil
}

// follow returns the successor of cluster inside a file that still has
// data left, so the end of the chain is an error here.
func (fs *Fs) follow(cluster uint32) (uint32, error) {
	link, err := fs.nextCluster(cluster)
	if err != nil {
		return 0, err
	}

	switch link.Kind {
	case LinkNext:
		return link.Cluster, nil
	case LinkEnd:
		return 0, checkpoint.Wrapf(ErrShortChain, "chain ends at cluster %d", cluster)
	case LinkBad:
		return 0, checkpoint.Wrapf(ErrBadChain, "after cluster %d", cluster)
	}
	return 0, checkpoint.Wrapf(ErrFreeCluster, "after cluster %d", cluster)
}

// readFileAt reads up to readSize bytes at offset of the chain starting at
// cluster, never beyond fileSize.
func (fs *Fs) readFileAt(cluster uint32, fileSize int64, offset int64, readSize int64) ([]byte, error) {
	if err := fs.acquire(); err != nil {
		return nil, err
	}
	defer fs.release()

	if !fs.mounted {
		return nil, ErrNotMounted
	}
	if offset < 0 || readSize < 0 {
		return nil, checkpoint.Wrapf(ErrReadFile, "offset %d, size %d", offset, readSize)
	}
	if offset+readSize > fileSize {
		readSize = fileSize - offset
	}
	if readSize <= 0 {
		return nil, nil
	}

	bpc := int64(fs.info.BytesPerCluster)
	if bpc > int64(len(fs.scratch)) {
		return nil, checkpoint.Wrapf(ErrClusterTooLarge, "%d bytes", bpc)
	}

	var err error
	for skip := offset / bpc; skip > 0; skip-- {
		if cluster, err = fs.follow(cluster); err != nil {
			return nil, err
		}
	}

	data := make([]byte, 0, readSize)
	within := offset % bpc
	for {
		lba, ok := fs.ClusterToLBA(cluster)
		if !ok {
			return data, checkpoint.Wrapf(ErrTranslateCluster, "cluster %d", cluster)
		}

		buf := fs.scratch[:bpc]
		if err := fs.readSectors(lba, uint32(fs.info.BPB.SectorsPerCluster), buf); err != nil {
			return data, checkpoint.Wrap(err, ErrReadFile)
		}

		n := bpc - within
		if left := readSize - int64(len(data)); n > left {
			n = left
		}
		data = append(data, buf[within:within+n]...)
		within = 0

		if int64(len(data)) == readSize {
			return data, nil
		}
		if cluster, err = fs.follow(cluster); err != nil {
			return data, err
		}
	}
}
