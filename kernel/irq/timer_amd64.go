package irq

import (
	"github.com/LimitlessOS-official/Limitless-sub011/kernel"
)

const (
	pitChannel0Port = 0x40
	pitCommandPort  = 0x43

	// pitCmdRateGenerator selects channel 0, lobyte/hibyte access and
	// mode 2 (rate generator).
	pitCmdRateGenerator = 0x34

	// pitBaseFrequency is the fixed input clock of the 8253/8254 timer
	// in Hz.
	pitBaseFrequency = 1193182
)

// ErrTimerRateOutOfRange is returned when the requested timer frequency
// cannot be expressed as a 16-bit divisor of the PIT input clock.
var ErrTimerRateOutOfRange = &kernel.Error{Module: "irq", Message: "timer frequency out of range"}

// TimerIRQLine is the hardware interrupt line the PIT fires on.
const TimerIRQLine = uint8(0)

// SetPeriodicTimer programs the PIT to raise a timer interrupt hz times per
// second. The line must be unmasked via UnmaskIRQ before the interrupts
// are delivered.
func SetPeriodicTimer(hz uint32) *kernel.Error {
	if hz == 0 {
		return ErrTimerRateOutOfRange
	}

	divisor := pitBaseFrequency / hz
	if divisor == 0 || divisor > 0xffff {
		return ErrTimerRateOutOfRange
	}

	portWriteByteFn(pitCommandPort, pitCmdRateGenerator)
	portWriteByteFn(pitChannel0Port, uint8(divisor))
	portWriteByteFn(pitChannel0Port, uint8(divisor>>8))
	return nil
}
