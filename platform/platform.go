package platform

import (
	"lautenbacher.net/godac/config"
)

// Platform defines the interface for abstracting away the real SPI
// hardware from the in-memory simulation.
type Platform interface {
	// Start opens the buses and creates the configured devices.
	Start() error

	// Stop releases all bus resources.
	Stop()

	// Apply pushes the flags and values of conf to the devices.
	Apply(conf *config.Config) error

	// Write sets one channel of the named device.
	Write(device string, channel, value int) error

	// Read returns the last value written to one channel of the named device.
	Read(device string, channel int) (int, error)

	// Outputs returns the state of every device, sorted by name.
	Outputs() []OutputState
}

// OutputState is the externally visible state of one device.
type OutputState struct {
	Name     string    `json:"Name"`
	Variant  string    `json:"Variant"`
	Chip     int       `json:"Chip"`
	Buffered bool      `json:"Buffered"`
	Gain     bool      `json:"Gain"`
	Shutdown bool      `json:"Shutdown"`
	Values   []int     `json:"Values"`
	Volts    []float64 `json:"Volts"`
}
