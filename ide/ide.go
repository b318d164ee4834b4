// Package ide is a polling ATA PIO driver for the primary master drive.
//
// Every transfer is issued one sector at a time through the command block
// registers and completes synchronously: wait for BSY to clear, program the
// 28-bit address, issue the command, wait for DRQ and move 256 words through
// the data port. Writes are followed by FLUSH CACHE and are not reported
// successful until the flush completes.
//
// The driver never touches hardware directly. It talks to a Ports
// implementation, which is real port I/O on bare metal, an Emulator backed
// by an image file on a host, or a mock in tests.
package ide

import (
	"errors"
	"fmt"
	"time"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/sirupsen/logrus"
)

// SectorSize is the size of one transfer unit.
const SectorSize = 512

// MaxLBA is the highest sector reachable with 28-bit addressing.
const MaxLBA = 1<<28 - 1

// These errors may occur while talking to the drive.
// Every failed transfer matches ErrIO in addition to its specific cause.
var (
	ErrIO          = errors.New("ide transfer failed")
	ErrBusyTimeout = errors.New("timeout waiting for BSY to clear")
	ErrDataTimeout = errors.New("timeout waiting for DRQ")
	ErrDeviceError = errors.New("drive reported ERR")
	ErrDeviceFault = errors.New("drive reported DF")
	ErrFlush       = errors.New("cache flush failed")

	ErrShortBuffer = errors.New("buffer smaller than the requested sectors")
	ErrLBARange    = errors.New("sector range exceeds 28-bit addressing")
)

// Driver implements sector reads and writes over a Ports implementation.
type Driver struct {
	ports   Ports
	timeout Timeout
	now     func() time.Time
	log     logrus.FieldLogger
	metrics *Metrics
}

// Option configures a Driver.
type Option func(*Driver)

// WithTimeout replaces DefaultTimeout.
func WithTimeout(t Timeout) Option {
	return func(d *Driver) {
		if !t.isZero() {
			d.timeout = t
		}
	}
}

// WithLogger sets the diagnostic sink.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// WithMetrics enables the transfer counters.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithClock replaces time.Now for Timeout.MaxWait.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// New creates a driver for the master drive behind ports.
func New(ports Ports, opts ...Option) *Driver {
	d := &Driver{
		ports:   ports,
		timeout: DefaultTimeout,
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ReadSectors reads count sectors starting at lba into buf.
// On failure the content of buf is undefined and the remaining sectors are
// not attempted.
func (d *Driver) ReadSectors(lba uint32, count uint16, buf []byte) error {
	if err := d.checkRange(lba, count, buf); err != nil {
		return err
	}

	for i := uint32(0); i < uint32(count); i++ {
		sector := lba + i
		if err := d.issue(sector, CmdReadPIO); err != nil {
			return d.fail("read", sector, err)
		}
		d.ports.Insw(RegData, buf[i*SectorSize:(i+1)*SectorSize])
		d.metrics.read()
	}
	return nil
}

// WriteSectors writes count sectors from buf starting at lba, flushing the
// drive cache after each one.
func (d *Driver) WriteSectors(lba uint32, count uint16, buf []byte) error {
	if err := d.checkRange(lba, count, buf); err != nil {
		return err
	}

	for i := uint32(0); i < uint32(count); i++ {
		sector := lba + i
		if err := d.issue(sector, CmdWritePIO); err != nil {
			return d.fail("write", sector, err)
		}
		d.ports.Outsw(RegData, buf[i*SectorSize:(i+1)*SectorSize])

		if err := d.flush(); err != nil {
			return d.fail("write", sector, err)
		}
		d.metrics.written()
	}
	return nil
}

func (d *Driver) checkRange(lba uint32, count uint16, buf []byte) error {
	if len(buf) < int(count)*SectorSize {
		return checkpoint.Wrapf(ErrShortBuffer, "%d bytes for %d sectors", len(buf), count)
	}
	if count > 0 && uint64(lba)+uint64(count)-1 > MaxLBA {
		return checkpoint.Wrapf(ErrLBARange, "lba %d count %d", lba, count)
	}
	return nil
}

func (d *Driver) fail(op string, lba uint32, err error) error {
	d.metrics.failed(err)
	d.log.WithFields(logrus.Fields{
		"op":    op,
		"lba":   lba,
		"cause": cause(err),
	}).Error("ide: sector transfer failed")
	return checkpoint.Wrap(fmt.Errorf("%s sector %d: %w", op, lba, err), ErrIO)
}

// issue programs a single-sector command and waits until the drive is
// ready to move data.
func (d *Driver) issue(lba uint32, cmd uint8) error {
	if _, err := d.waitNotBusy(); err != nil {
		return err
	}

	d.ports.Outb(RegDriveHead, lbaModeMaster|uint8(lba>>24)&0x0F)
	d.ports.Outb(RegSectorCount, 1)
	d.ports.Outb(RegLBALow, uint8(lba))
	d.ports.Outb(RegLBAMid, uint8(lba>>8))
	d.ports.Outb(RegLBAHigh, uint8(lba>>16))
	d.ports.Outb(RegCommand, cmd)

	return d.waitDataRequest()
}

func (d *Driver) flush() error {
	d.ports.Outb(RegCommand, CmdFlushCache)

	status, err := d.waitNotBusy()
	if err != nil {
		return err
	}
	if err := statusError(status); err != nil {
		return checkpoint.Wrap(err, ErrFlush)
	}
	return nil
}

// readStatus reads the alternate status four times first, which gives the
// drive the ~400ns it needs to update BSY after a command.
func (d *Driver) readStatus() uint8 {
	for i := 0; i < 4; i++ {
		d.ports.Inb(RegAltStatus)
	}
	return d.ports.Inb(RegStatus)
}

func (d *Driver) waitNotBusy() (uint8, error) {
	p := d.timeout.start(d.now)
	for p.next() {
		status := d.readStatus()
		if status&StatusBsy == 0 {
			return status, nil
		}
	}
	return 0, ErrBusyTimeout
}

func (d *Driver) waitDataRequest() error {
	status, err := d.waitNotBusy()
	if err != nil {
		return err
	}
	if err := statusError(status); err != nil {
		return err
	}

	p := d.timeout.start(d.now)
	for p.next() {
		status = d.readStatus()
		if err := statusError(status); err != nil {
			return err
		}
		if status&StatusDRQ != 0 {
			return nil
		}
	}
	return ErrDataTimeout
}

// statusError checks ERR before DF.
func statusError(status uint8) error {
	switch {
	case status&StatusErr != 0:
		return ErrDeviceError
	case status&StatusDF != 0:
		return ErrDeviceFault
	}
	return nil
}
