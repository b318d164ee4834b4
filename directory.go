package gofat32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/sirupsen/logrus"
)

// These errors may occur while walking a directory.
var (
	ErrNilEntryFunc = errors.New("no entry function given")
	ErrNotFound     = errors.New("no such file or directory")
	ErrNotDir       = errors.New("not a directory")
)

// ErrStop can be returned by an EntryFunc to end a walk early. List then
// reports success.
var ErrStop = errors.New("stop listing the directory")

// EntryFunc is called by List once for every live short name entry with the
// raw record and its display name.
//
// It must not call back into the Fs; those calls fail with ErrReentrant.
// Returning a non-nil error other than ErrStop aborts the walk with that error.
type EntryFunc func(entry EntryHeader, name string) error

// ShortName reconstructs the display name of a packed 8.3 name:
// "FOO     TXT" becomes "FOO.TXT" and "FOO        " becomes "FOO".
// A leading 0x05 stands for a real 0xE5.
func ShortName(raw [11]byte) string {
	name := make([]byte, 0, 12)
	for i := 0; i < 8 && raw[i] != ' '; i++ {
		c := raw[i]
		if i == 0 && c == entryKanji {
			c = entryDeleted
		}
		name = append(name, c)
	}

	if raw[8] != ' ' {
		name = append(name, '.')
		for i := 8; i < 11 && raw[i] != ' '; i++ {
			name = append(name, raw[i])
		}
	}
	return string(name)
}

// List walks the directory chain starting at cluster and calls fn for every
// live 8.3 entry, in on-disk order. Deleted entries, long name fragments and
// volume labels are skipped. The walk ends successfully at the first end of
// directory marker or at the end of the chain.
//
// found reports if fn was called at least once, so an empty directory
// (false, nil) can be told apart from a directory that could not be read
// (false, err).
func (fs *Fs) List(cluster uint32, fn EntryFunc) (found bool, err error) {
	if err := fs.acquire(); err != nil {
		return false, err
	}
	defer fs.release()

	return fs.list(cluster, fn)
}

func (fs *Fs) list(cluster uint32, fn EntryFunc) (bool, error) {
	if !fs.mounted {
		return false, ErrNotMounted
	}
	if cluster < 2 {
		return false, checkpoint.Wrapf(ErrInvalidCluster, "cluster %d", cluster)
	}
	if fn == nil {
		return false, ErrNilEntryFunc
	}

	size := fs.info.BytesPerCluster
	if int(size) > len(fs.scratch) {
		return false, checkpoint.Wrapf(ErrClusterTooLarge, "%d bytes per cluster", size)
	}

	log := fs.log.WithField("dir", cluster)
	found := false
	for visited := uint32(1); ; visited++ {
		if visited > fs.info.TotalClusters {
			return found, checkpoint.Wrapf(ErrChainLoop, "more than %d clusters", fs.info.TotalClusters)
		}

		lba, ok := fs.ClusterToLBA(cluster)
		if !ok {
			return found, checkpoint.Wrapf(ErrTranslateCluster, "cluster %d", cluster)
		}

		buf := fs.scratch[:size]
		if err := fs.readSectors(lba, uint32(fs.info.BPB.SectorsPerCluster), buf); err != nil {
			log.WithFields(logrus.Fields{
				"cluster": cluster,
				"lba":     lba,
			}).WithError(err).Error("directory read failed")
			return found, checkpoint.Wrap(err, ErrReadDir)
		}

		for off := uint32(0); off < size; off += entrySize {
			record := buf[off : off+entrySize]
			switch record[0] {
			case entryEnd:
				return found, nil
			case entryDeleted:
				continue
			}

			var entry EntryHeader
			if err := binary.Read(bytes.NewReader(record), binary.LittleEndian, &entry); err != nil {
				return found, checkpoint.Wrap(err, ErrReadDir)
			}
			if entry.Attribute == AttrLongName || entry.Attribute&AttrVolumeID != 0 {
				continue
			}

			found = true
			if err := fn(entry, ShortName(entry.Name)); err != nil {
				if err == ErrStop {
					return found, nil
				}
				return found, err
			}
		}

		link, err := fs.nextCluster(cluster)
		if err != nil {
			return found, err
		}
		switch link.Kind {
		case LinkNext:
			cluster = link.Cluster
		case LinkEnd:
			return found, nil
		case LinkBad:
			return found, checkpoint.Wrapf(ErrBadChain, "after cluster %d", cluster)
		default:
			return found, checkpoint.Wrapf(ErrFreeCluster, "after cluster %d", cluster)
		}
	}
}

// ReadDir returns all entries of the directory at cluster.
func (fs *Fs) ReadDir(cluster uint32) ([]DirEntry, error) {
	return fs.readDir(cluster)
}

func (fs *Fs) readDir(cluster uint32) ([]DirEntry, error) {
	var entries []DirEntry
	_, err := fs.List(cluster, func(entry EntryHeader, name string) error {
		entries = append(entries, fs.dirEntry(entry, name))
		return nil
	})
	return entries, err
}

// Find looks up name in the directory at dir. The comparison ignores case.
func (fs *Fs) Find(dir uint32, name string) (DirEntry, error) {
	var result DirEntry
	found := false
	_, err := fs.List(dir, func(entry EntryHeader, entryName string) error {
		if !strings.EqualFold(entryName, name) {
			return nil
		}
		result = fs.dirEntry(entry, entryName)
		found = true
		return ErrStop
	})
	if err != nil {
		return DirEntry{}, err
	}
	if !found {
		return DirEntry{}, checkpoint.Wrapf(ErrNotFound, "%q in cluster %d", name, dir)
	}
	return result, nil
}

func (fs *Fs) dirEntry(entry EntryHeader, name string) DirEntry {
	return DirEntry{
		EntryHeader: entry,
		Name:        name,
		root:        fs.RootCluster(),
	}
}

// Cluster is the first cluster of the entry. A directory entry pointing to
// cluster 0, as ".." does inside a top level directory, refers to the root.
func (e DirEntry) Cluster() uint32 {
	if cluster := e.FirstCluster(); cluster != 0 || !e.IsDir() {
		return cluster
	}
	return e.root
}

// Open opens the entry name of the directory at dir for reading.
func (fs *Fs) Open(dir uint32, name string) (*File, error) {
	entry, err := fs.Find(dir, name)
	if err != nil {
		return nil, err
	}
	return fs.openEntry(entry), nil
}

// OpenDir opens the directory starting at cluster, for example the root.
func (fs *Fs) OpenDir(cluster uint32) (*File, error) {
	if !fs.mounted {
		return nil, ErrNotMounted
	}
	if !fs.validCluster(cluster) {
		return nil, checkpoint.Wrapf(ErrInvalidCluster, "cluster %d", cluster)
	}

	entry := DirEntry{Name: ".", root: fs.RootCluster()}
	entry.Attribute = AttrDirectory
	entry.FirstClusterHI = uint16(cluster >> 16)
	entry.FirstClusterLO = uint16(cluster)
	return fs.openEntry(entry), nil
}
