package hardware

import (
	"fmt"
	"log/slog"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/physic"
)

// OpenRpio maps the GPIO registers and starts SPI0 in mode 0 at speed Hz.
// go-rpio drives a single global controller, so call it once per process
// and create one RpioBus per chip select.
func OpenRpio(speed int) error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return fmt.Errorf("failed to begin spi: %w", err)
	}
	if speed <= 0 {
		speed = int(DefaultFrequency / physic.Hertz)
	}
	rpio.SpiSpeed(speed)
	rpio.SpiMode(0, 0)
	slog.Debug("Opened rpio spi", "speed", speed)
	return nil
}

// CloseRpio releases SPI0 and the GPIO mapping.
func CloseRpio() error {
	rpio.SpiEnd(rpio.Spi0)
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("failed to close rpio: %w", err)
	}
	return nil
}

// RpioBus writes frames on SPI0 with its chip select line asserted.
// Selecting the chip and transmitting are two calls on shared global
// state, so wrap RpioBus in a Locked when several devices share SPI0.
type RpioBus struct {
	chip uint8
}

func NewRpioBus(chip int) (*RpioBus, error) {
	if chip < 0 || chip > 2 {
		return nil, fmt.Errorf("rpio chip select %d not in [0, 2]", chip)
	}
	return &RpioBus{chip: uint8(chip)}, nil
}

func (b *RpioBus) WriteBytes(data []byte) error {
	rpio.SpiChipSelect(b.chip)
	rpio.SpiTransmit(data...)
	return nil
}
