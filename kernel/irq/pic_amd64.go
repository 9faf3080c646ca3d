package irq

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel/cpu"
)

const (
	picMasterCmdPort  = 0x20
	picMasterDataPort = 0x21
	picSlaveCmdPort   = 0xa0
	picSlaveDataPort  = 0xa1

	// icw1Init begins the PIC initialization sequence; icw1NeedICW4
	// announces that a fourth initialization word follows.
	icw1Init     = 0x10
	icw1NeedICW4 = 0x01

	// icw4Mode8086 selects the 8086 end-of-interrupt protocol.
	icw4Mode8086 = 0x01

	// slaveIRQLine is the master line the slave PIC cascades through.
	slaveIRQLine = 2

	picEOI = 0x20
)

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	ackIRQFn        = ackIRQ
)

// picInit remaps the two cascaded 8259 controllers so that IRQ lines 0-15
// raise vectors 32-47, clear of the CPU exception range the BIOS leaves
// them overlapping. Every line is masked; only the cascade line stays open
// so slave interrupts can reach the master once they are unmasked.
func picInit() {
	portWriteByteFn(picMasterCmdPort, icw1Init|icw1NeedICW4)
	portWriteByteFn(picSlaveCmdPort, icw1Init|icw1NeedICW4)

	portWriteByteFn(picMasterDataPort, irqBaseVector)
	portWriteByteFn(picSlaveDataPort, irqBaseVector+8)

	portWriteByteFn(picMasterDataPort, 1<<slaveIRQLine)
	portWriteByteFn(picSlaveDataPort, slaveIRQLine)

	portWriteByteFn(picMasterDataPort, icw4Mode8086)
	portWriteByteFn(picSlaveDataPort, icw4Mode8086)

	portWriteByteFn(picMasterDataPort, 0xff&^(1<<slaveIRQLine))
	portWriteByteFn(picSlaveDataPort, 0xff)
}

// MaskIRQ prevents interrupts on the given line from reaching the CPU.
func MaskIRQ(line uint8) {
	if line >= numIRQLines {
		return
	}

	port, bit := linePort(line)
	portWriteByteFn(port, portReadByteFn(port)|1<<bit)
}

// UnmaskIRQ allows interrupts on the given line to reach the CPU again.
func UnmaskIRQ(line uint8) {
	if line >= numIRQLines {
		return
	}

	port, bit := linePort(line)
	portWriteByteFn(port, portReadByteFn(port)&^(1<<bit))
}

// linePort returns the mask register port that controls line and the bit
// position of the line within it.
func linePort(line uint8) (port uint16, bit uint8) {
	if line < 8 {
		return picMasterDataPort, line
	}
	return picSlaveDataPort, line - 8
}

// ackIRQ signals end-of-interrupt for the given line. Lines behind the
// slave PIC need an EOI on both controllers.
func ackIRQ(line uint8) {
	if line >= 8 {
		portWriteByteFn(picSlaveCmdPort, picEOI)
	}
	portWriteByteFn(picMasterCmdPort, picEOI)
}
