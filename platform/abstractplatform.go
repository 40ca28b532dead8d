package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"lautenbacher.net/godac/config"
	"lautenbacher.net/godac/mcp492x"
	"periph.io/x/conn/v3/physic"
)

var ErrUnknownDevice = errors.New("unknown device")

// busFunc opens the byte sink for one configured device.
type busFunc func(d config.DeviceConfig) (mcp492x.Bus, error)

type AbstractPlatform struct {
	config  *config.Config
	openBus busFunc
	devMu   sync.RWMutex
	devices map[string]*device
}

// device pairs a DAC with the mutex that makes it its exclusive owner.
type device struct {
	mu      sync.Mutex
	name    string
	variant string
	dac     *mcp492x.Dev
}

func newAbstractPlatform(conf *config.Config, openBus busFunc) *AbstractPlatform {
	return &AbstractPlatform{
		config:  conf,
		openBus: openBus,
		devices: make(map[string]*device),
	}
}

func volts(v float64) physic.ElectricPotential {
	return physic.ElectricPotential(v * float64(physic.Volt))
}

// initDevices creates one DAC per configured device. No frame is sent.
func (s *AbstractPlatform) initDevices() error {
	devices := make(map[string]*device, len(s.config.Devices))
	for _, d := range s.config.Devices {
		bus, err := s.openBus(d)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.Name, err)
		}
		dac, err := mcp492x.New(bus, d.Chip, d.Channels(), volts(d.VRef))
		if err != nil {
			return fmt.Errorf("device %s: %w", d.Name, err)
		}
		devices[d.Name] = &device{name: d.Name, variant: d.Variant, dac: dac}
		slog.Info("Created DAC", "device", d.Name, "dac", dac.String())
	}

	s.devMu.Lock()
	s.devices = devices
	s.devMu.Unlock()
	return nil
}

func (s *AbstractPlatform) device(name string) (*device, error) {
	s.devMu.RLock()
	defer s.devMu.RUnlock()
	d, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return d, nil
}

// Apply sets the flags of every device in conf and writes each channel:
// the configured value where one is given, the current value otherwise,
// so new mode bits always reach the chip. Hardware settings (variant,
// chip, reference) are only read at Start.
func (s *AbstractPlatform) Apply(conf *config.Config) error {
	var errs []error
	for _, dc := range conf.Devices {
		d, err := s.device(dc.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.apply(dc.OutputConfig); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *device) apply(out config.OutputConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dac.SetBuffered(out.Buffered)
	d.dac.SetGain(out.Gain)
	d.dac.SetShutdown(out.Shutdown)

	current := d.dac.Values()
	for ch := range current {
		value := current[ch]
		if ch < len(out.Values) {
			value = out.Values[ch]
		}
		if err := d.dac.Write(ch, value); err != nil {
			return fmt.Errorf("device %s channel %d: %w", d.name, ch, err)
		}
		slog.Debug("Applied output", "device", d.name, "channel", ch, "value", value,
			"buffered", out.Buffered, "gain", out.Gain, "shutdown", out.Shutdown)
	}
	return nil
}

func (s *AbstractPlatform) Write(name string, channel, value int) error {
	d, err := s.device(name)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.dac.Write(channel, value); err != nil {
		return fmt.Errorf("device %s: %w", name, err)
	}
	slog.Debug("Wrote output", "device", name, "channel", channel, "value", value)
	return nil
}

func (s *AbstractPlatform) Read(name string, channel int) (int, error) {
	d, err := s.device(name)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dac.Read(channel)
}

func (s *AbstractPlatform) Outputs() []OutputState {
	s.devMu.RLock()
	names := maps.Keys(s.devices)
	slices.Sort(names)
	devices := make([]*device, len(names))
	for i, name := range names {
		devices[i] = s.devices[name]
	}
	s.devMu.RUnlock()

	states := make([]OutputState, 0, len(devices))
	for _, d := range devices {
		states = append(states, d.state())
	}
	return states
}

func (d *device) state() OutputState {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := OutputState{
		Name:     d.name,
		Variant:  d.variant,
		Chip:     d.dac.Chip(),
		Buffered: d.dac.Buffered(),
		Gain:     d.dac.Gain(),
		Shutdown: d.dac.Shutdown(),
		Values:   d.dac.Values(),
		Volts:    make([]float64, d.dac.Channels()),
	}
	for ch := range st.Volts {
		if v, err := d.dac.Voltage(ch); err == nil {
			st.Volts[ch] = float64(v) / float64(physic.Volt)
		}
	}
	return st
}
