package platform

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"lautenbacher.net/godac/config"
	"lautenbacher.net/godac/hardware"
	"lautenbacher.net/godac/mcp492x"
	"periph.io/x/conn/v3/physic"
)

// RaspberryPiPlatform drives the DACs on the Pi's SPI controller through
// periph.io or go-rpio, as selected by Hardware.GPIOLibrary.
type RaspberryPiPlatform struct {
	*AbstractPlatform
	spiMutex    sync.Mutex
	ports       []io.Closer
	rpioStarted bool
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	inst := &RaspberryPiPlatform{}
	inst.AbstractPlatform = newAbstractPlatform(conf, inst.openBus)
	return inst
}

func (s *RaspberryPiPlatform) Start() error {
	hw := s.config.Hardware
	slog.Info("Initialise Spi...", "library", hw.GPIOLibrary, "frequency", hw.SPIFrequency)

	if hw.GPIOLibrary == config.LibRpio {
		if err := hardware.OpenRpio(hw.SPIFrequency); err != nil {
			return err
		}
		s.rpioStarted = true
	}

	if err := s.initDevices(); err != nil {
		s.Stop()
		return err
	}
	return nil
}

// openBus returns the byte sink for d. All sinks share spiMutex since the
// devices sit on one SPI controller.
func (s *RaspberryPiPlatform) openBus(d config.DeviceConfig) (mcp492x.Bus, error) {
	hw := s.config.Hardware
	switch hw.GPIOLibrary {
	case config.LibRpio:
		bus, err := hardware.NewRpioBus(d.Chip)
		if err != nil {
			return nil, err
		}
		return hardware.NewLocked(&s.spiMutex, bus), nil
	case config.LibPeriph:
		freq := physic.Frequency(hw.SPIFrequency) * physic.Hertz
		bus, err := hardware.OpenPeriph(hw.SPIBus, d.Chip, freq)
		if err != nil {
			return nil, err
		}
		s.ports = append(s.ports, bus)
		return hardware.NewLocked(&s.spiMutex, bus), nil
	}
	return nil, fmt.Errorf("unknown GPIO library: %s", hw.GPIOLibrary)
}

func (s *RaspberryPiPlatform) Stop() {
	s.spiMutex.Lock()
	defer s.spiMutex.Unlock()

	for _, port := range s.ports {
		if err := port.Close(); err != nil {
			slog.Error("Error closing spi port", "error", err)
		}
	}
	s.ports = nil

	if s.rpioStarted {
		if err := hardware.CloseRpio(); err != nil {
			slog.Error("Error closing rpio", "error", err)
		}
		s.rpioStarted = false
	}
}
