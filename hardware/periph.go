package hardware

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// PeriphBus writes frames to a spidev node through periph.io.
type PeriphBus struct {
	name string
	port spi.PortCloser
	conn spi.Conn
}

// OpenPeriph opens /dev/spidev<bus>.<chip> in SPI mode 0 with 8 bit
// words.
func OpenPeriph(bus, chip int, freq physic.Frequency) (*PeriphBus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init periph: %w", err)
	}
	if freq == 0 {
		freq = DefaultFrequency
	}

	name := fmt.Sprintf("/dev/spidev%d.%d", bus, chip)
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open spi %s: %w", name, err)
	}

	conn, err := port.Connect(freq, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect to spi device %s: %w", name, err)
	}
	slog.Debug("Opened spi port", "port", name, "frequency", freq)
	return &PeriphBus{name: name, port: port, conn: conn}, nil
}

func (b *PeriphBus) WriteBytes(data []byte) error {
	read := make([]byte, len(data))
	if err := b.conn.Tx(data, read); err != nil {
		return fmt.Errorf("spi transaction on %s failed: %w", b.name, err)
	}
	return nil
}

func (b *PeriphBus) Close() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	return err
}
