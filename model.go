// File model contains the structs which match the direct structures of the FAT32 filesystem.

package gofat32

// BPB is the first 90 bytes of the boot sector.
type BPB struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSpecificData     [54]byte
}

// FAT32SpecificData is the layout of BPB.FATSpecificData on a FAT32 volume.
type FAT32SpecificData struct {
	FatSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      fatEntry
	FSInfo           uint16
	BkBootSector     uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

// bootSignature is stored at byte offset 510 of the boot sector.
const (
	bootSignature       = 0xAA55
	bootSignatureOffset = 510
)

// Attributes of an EntryHeader.
const (
	AttrReadOnly  byte = 0x01
	AttrHidden    byte = 0x02
	AttrSystem    byte = 0x04
	AttrVolumeID  byte = 0x08
	AttrDirectory byte = 0x10
	AttrArchive   byte = 0x20
	AttrLongName       = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

// Special first bytes of an EntryHeader name.
const (
	entryEnd     = 0x00
	entryDeleted = 0xE5
	// entryKanji escapes a real 0xE5 as first name byte.
	entryKanji = 0x05
)

const entrySize = 32

// EntryHeader is one 32 byte short name directory record.
type EntryHeader struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

// FirstCluster joins both halves of the start cluster.
func (h EntryHeader) FirstCluster() uint32 {
	return uint32(h.FirstClusterHI)<<16 | uint32(h.FirstClusterLO)
}

// IsDir reports if the entry is a subdirectory.
func (h EntryHeader) IsDir() bool {
	return h.Attribute&AttrDirectory == AttrDirectory
}

// DirEntry is an EntryHeader together with its reconstructed display name.
type DirEntry struct {
	EntryHeader
	Name string

	root uint32
}
