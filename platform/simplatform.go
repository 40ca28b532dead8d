package platform

import (
	"fmt"
	"log/slog"

	"lautenbacher.net/godac/config"
	"lautenbacher.net/godac/hardware"
	"lautenbacher.net/godac/mcp492x"
)

// SimulationPlatform backs every device with a hardware.Recorder so the
// daemon can run without SPI hardware. Frames are logged at debug level.
type SimulationPlatform struct {
	*AbstractPlatform
	recorders map[string]*hardware.Recorder
}

func NewSimulationPlatform(conf *config.Config) *SimulationPlatform {
	inst := &SimulationPlatform{recorders: make(map[string]*hardware.Recorder)}
	inst.AbstractPlatform = newAbstractPlatform(conf, inst.openBus)
	return inst
}

func (s *SimulationPlatform) Start() error {
	slog.Info("No SPI init done as we are not running on real hardware...")
	return s.initDevices()
}

func (s *SimulationPlatform) Stop() {}

func (s *SimulationPlatform) openBus(d config.DeviceConfig) (mcp492x.Bus, error) {
	rec := hardware.NewRecorder(s.config.Hardware.RecorderSize)
	s.recorders[d.Name] = rec
	return &loggingBus{name: d.Name, bus: rec}, nil
}

// Recorder returns the recorder behind the named device.
func (s *SimulationPlatform) Recorder(name string) (*hardware.Recorder, error) {
	rec, ok := s.recorders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return rec, nil
}

type loggingBus struct {
	name string
	bus  mcp492x.Bus
}

func (b *loggingBus) WriteBytes(data []byte) error {
	slog.Debug("Simulated spi frame", "device", b.name, "frame", fmt.Sprintf("% X", data))
	return b.bus.WriteBytes(data)
}
