package hardware

import (
	"tinygo.org/x/drivers"
)

// TinyGoBus adapts a TinyGo SPI peripheral. The chip select line is
// driven through selectChip, which receives true before and false after
// each frame; it may be nil when the peripheral handles chip select
// itself.
type TinyGoBus struct {
	spi        drivers.SPI
	selectChip func(selected bool)
}

func NewTinyGoBus(spi drivers.SPI, selectChip func(selected bool)) *TinyGoBus {
	return &TinyGoBus{spi: spi, selectChip: selectChip}
}

func (b *TinyGoBus) WriteBytes(data []byte) error {
	if b.selectChip != nil {
		b.selectChip(true)
		defer b.selectChip(false)
	}
	return b.spi.Tx(data, nil)
}
