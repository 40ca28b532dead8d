package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

const (
	LibPeriph = "periph.io"
	LibRpio   = "rpio"

	VariantMCP4921 = "MCP4921"
	VariantMCP4922 = "MCP4922"

	maxValue = 4095
)

type Config struct {
	RealHW     bool           `yaml:"-"`
	Configfile string         `yaml:"-"`
	Hardware   HardwareConfig `yaml:"Hardware"`
	Devices    []DeviceConfig `yaml:"Devices"`
	Logging    LoggingConfig  `yaml:"Logging"`
}

type HardwareConfig struct {
	GPIOLibrary  string `yaml:"GPIOLibrary"`
	SPIBus       int    `yaml:"SPIBus"`
	SPIFrequency int    `yaml:"SPIFrequency"`
	RecorderSize int    `yaml:"RecorderSize"`
}

type DeviceConfig struct {
	Name         string  `yaml:"Name"`
	Variant      string  `yaml:"Variant"`
	Chip         int     `yaml:"Chip"`
	VRef         float64 `yaml:"VRef"`
	OutputConfig `yaml:",inline"`
}

// OutputConfig is the part of a device that may change while running.
type OutputConfig struct {
	Buffered bool  `yaml:"Buffered" json:"Buffered"`
	Gain     bool  `yaml:"Gain" json:"Gain"`
	Shutdown bool  `yaml:"Shutdown" json:"Shutdown"`
	Values   []int `yaml:"Values,flow" json:"Values"`
}

type LoggingConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// Channels returns the output count of the device variant, or 0 for an
// unknown variant.
func (d DeviceConfig) Channels() int {
	switch strings.ToUpper(d.Variant) {
	case VariantMCP4921:
		return 1
	case VariantMCP4922:
		return 2
	}
	return 0
}

// Device returns the configuration of the device called name.
func (c *Config) Device(name string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// ReadConfig reads, normalizes and validates the YAML file at cfile.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't find config file %s: %w", cfile, err)
	}
	defer f.Close()

	var conf Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.Configfile = cfile
	conf.normalize()

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

func (c *Config) normalize() {
	if c.Hardware.GPIOLibrary == "" {
		c.Hardware.GPIOLibrary = LibPeriph
	}
	if c.Hardware.RecorderSize == 0 {
		c.Hardware.RecorderSize = 64
	}
	for i := range c.Devices {
		c.Devices[i].Variant = strings.ToUpper(c.Devices[i].Variant)
	}
}

// Validate checks the whole configuration and reports every problem it
// finds.
func (c *Config) Validate() error {
	var errs []error

	switch c.Hardware.GPIOLibrary {
	case LibPeriph, LibRpio:
	default:
		errs = append(errs, fmt.Errorf("Hardware.GPIOLibrary must be %q or %q, got %q", LibPeriph, LibRpio, c.Hardware.GPIOLibrary))
	}
	if c.Hardware.SPIBus < 0 {
		errs = append(errs, fmt.Errorf("Hardware.SPIBus must be non-negative, got %d", c.Hardware.SPIBus))
	}
	if c.Hardware.SPIFrequency < 0 {
		errs = append(errs, fmt.Errorf("Hardware.SPIFrequency must be non-negative, got %d", c.Hardware.SPIFrequency))
	}
	if c.Hardware.RecorderSize < 0 {
		errs = append(errs, fmt.Errorf("Hardware.RecorderSize must be non-negative, got %d", c.Hardware.RecorderSize))
	}

	if len(c.Devices) == 0 {
		errs = append(errs, errors.New("at least one device must be configured"))
	}
	names := make(map[string]bool, len(c.Devices))
	chips := make(map[int]string, len(c.Devices))
	for i, d := range c.Devices {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("Devices[%d].Name must not be empty", i))
		} else if names[d.Name] {
			errs = append(errs, fmt.Errorf("device name %q is used more than once", d.Name))
		}
		names[d.Name] = true

		if d.Chip < 0 {
			errs = append(errs, fmt.Errorf("device %q: Chip must be non-negative, got %d", d.Name, d.Chip))
		} else if other, ok := chips[d.Chip]; ok {
			errs = append(errs, fmt.Errorf("device %q: Chip %d is already used by %q", d.Name, d.Chip, other))
		} else {
			chips[d.Chip] = d.Name
		}
		if c.Hardware.GPIOLibrary == LibRpio && d.Chip > 2 {
			errs = append(errs, fmt.Errorf("device %q: Chip must be between 0 and 2 for rpio, got %d", d.Name, d.Chip))
		}
		if d.VRef <= 0 {
			errs = append(errs, fmt.Errorf("device %q: VRef must be positive, got %g", d.Name, d.VRef))
		}

		channels := d.Channels()
		if channels == 0 {
			errs = append(errs, fmt.Errorf("device %q: Variant must be %s or %s, got %q", d.Name, VariantMCP4921, VariantMCP4922, d.Variant))
			continue
		}
		if err := d.OutputConfig.validate(d.Name, channels); err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("Logging.Level must be DEBUG, INFO, WARN or ERROR, got %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("Logging.Format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (o OutputConfig) validate(name string, channels int) error {
	var errs []error
	if len(o.Values) > channels {
		errs = append(errs, fmt.Errorf("device %q: has %d channels but %d values are configured", name, channels, len(o.Values)))
	}
	for i, v := range o.Values {
		if v < 0 || v > maxValue {
			errs = append(errs, fmt.Errorf("device %q: Values[%d] must be between 0 and %d, got %d", name, i, maxValue, v))
		}
	}
	return errors.Join(errs...)
}
