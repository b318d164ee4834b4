package ide

import (
	"io"
)

// Backing is the storage behind an Emulator. afero.File and *os.File
// satisfy it.
type Backing interface {
	io.ReaderAt
	io.WriterAt
}

type syncer interface {
	Sync() error
}

// error register value reported with StatusErr (ABRT)
const errAborted uint8 = 0x04

// Emulator is an in-process ATA controller with a single master drive whose
// sectors live in a Backing. It implements Ports, so the Driver runs the
// same register protocol against it as against real hardware.
//
// An Emulator is not safe for concurrent use.
type Emulator struct {
	// BusyPolls is the number of status reads that report BSY after each
	// command before the command completes.
	BusyPolls int
	// Fault, if set, is consulted for every command. Returned StatusErr or
	// StatusDF bits are raised instead of executing the command.
	Fault func(cmd uint8, lba uint32) uint8

	backing Backing

	// command block registers, indexed by port - RegData
	regs    [8]uint8
	status  uint8
	errReg  uint8
	busy    int
	pending uint8
	lba     uint32
	sector  [SectorSize]byte
}

// NewEmulator creates an idle controller in front of backing.
func NewEmulator(backing Backing) *Emulator {
	return &Emulator{
		backing: backing,
		status:  StatusRdy,
	}
}

func (e *Emulator) Inb(port uint16) uint8 {
	switch port {
	case RegStatus, RegAltStatus:
		if e.busy > 0 {
			e.busy--
			return StatusBsy
		}
		return e.status
	case RegError:
		return e.errReg
	case RegSectorCount, RegLBALow, RegLBAMid, RegLBAHigh, RegDriveHead:
		return e.regs[port-RegData]
	}
	// nothing drives the bus
	return 0xFF
}

func (e *Emulator) Outb(port uint16, value uint8) {
	switch port {
	case RegCommand:
		e.command(value)
	case RegFeatures, RegSectorCount, RegLBALow, RegLBAMid, RegLBAHigh, RegDriveHead:
		e.regs[port-RegData] = value
	}
}

func (e *Emulator) Insw(port uint16, buf []byte) {
	if port != RegData || e.pending != CmdReadPIO || e.status&StatusDRQ == 0 {
		return
	}
	copy(buf, e.sector[:])
	e.complete()
}

func (e *Emulator) Outsw(port uint16, buf []byte) {
	if port != RegData || e.pending != CmdWritePIO || e.status&StatusDRQ == 0 {
		return
	}
	copy(e.sector[:], buf)
	if _, err := e.backing.WriteAt(e.sector[:], int64(e.lba)*SectorSize); err != nil {
		e.abort()
		return
	}
	e.complete()
}

func (e *Emulator) currentLBA() uint32 {
	return uint32(e.regs[RegDriveHead-RegData]&0x0F)<<24 |
		uint32(e.regs[RegLBAHigh-RegData])<<16 |
		uint32(e.regs[RegLBAMid-RegData])<<8 |
		uint32(e.regs[RegLBALow-RegData])
}

func (e *Emulator) command(cmd uint8) {
	e.lba = e.currentLBA()
	e.busy = e.BusyPolls
	e.status = StatusRdy
	e.errReg = 0
	e.pending = 0

	if e.Fault != nil {
		if bits := e.Fault(cmd, e.lba) & (StatusErr | StatusDF); bits != 0 {
			e.status |= bits
			if bits&StatusErr != 0 {
				e.errReg = errAborted
			}
			return
		}
	}

	switch cmd {
	case CmdReadPIO:
		n, err := e.backing.ReadAt(e.sector[:], int64(e.lba)*SectorSize)
		if n < SectorSize || (err != nil && err != io.EOF) {
			e.abort()
			return
		}
		e.pending = cmd
		e.status |= StatusDRQ
	case CmdWritePIO:
		e.pending = cmd
		e.status |= StatusDRQ
	case CmdFlushCache:
		if s, ok := e.backing.(syncer); ok {
			if err := s.Sync(); err != nil {
				e.abort()
			}
		}
	default:
		e.abort()
	}
}

func (e *Emulator) complete() {
	e.pending = 0
	e.status &^= StatusDRQ
}

func (e *Emulator) abort() {
	e.pending = 0
	e.status = StatusRdy | StatusErr
	e.errReg = errAborted
}
