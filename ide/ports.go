package ide

// Primary bus register ports.
const (
	RegData        uint16 = 0x1F0
	RegError       uint16 = 0x1F1
	RegFeatures    uint16 = 0x1F1
	RegSectorCount uint16 = 0x1F2
	RegLBALow      uint16 = 0x1F3
	RegLBAMid      uint16 = 0x1F4
	RegLBAHigh     uint16 = 0x1F5
	RegDriveHead   uint16 = 0x1F6
	RegStatus      uint16 = 0x1F7
	RegCommand     uint16 = 0x1F7

	// RegAltStatus reads the status without acknowledging an interrupt.
	RegAltStatus  uint16 = 0x3F6
	RegDevControl uint16 = 0x3F6
)

// Status register bits.
const (
	StatusErr  uint8 = 1 << 0
	StatusIdx  uint8 = 1 << 1
	StatusCorr uint8 = 1 << 2
	StatusDRQ  uint8 = 1 << 3
	StatusSrv  uint8 = 1 << 4
	StatusDF   uint8 = 1 << 5
	StatusRdy  uint8 = 1 << 6
	StatusBsy  uint8 = 1 << 7
)

// Commands written to RegCommand.
const (
	CmdReadPIO    uint8 = 0x20
	CmdWritePIO   uint8 = 0x30
	CmdFlushCache uint8 = 0xE7
	CmdIdentify   uint8 = 0xEC
)

// lbaModeMaster selects the master drive in LBA mode. The low nibble
// carries LBA bits 24-27.
const lbaModeMaster uint8 = 0xE0

// Ports is raw access to the controller's I/O ports.
//
// Generated mock using mockgen:
//  mockgen -source=ports.go -destination=ports_mock.go -package ide
type Ports interface {
	Inb(port uint16) uint8
	Outb(port uint16, value uint8)
	// Insw reads len(buf)/2 little-endian words from port into buf.
	Insw(port uint16, buf []byte)
	// Outsw writes len(buf)/2 little-endian words from buf to port.
	Outsw(port uint16, buf []byte)
}
