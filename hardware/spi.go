// Package hardware provides the byte sinks the DAC driver writes its
// frames to: SPI through periph.io or go-rpio on a Raspberry Pi, a TinyGo
// SPI peripheral, and an in-memory Recorder used in simulation and tests.
package hardware

import (
	"sync"

	"lautenbacher.net/godac/mcp492x"
	"periph.io/x/conn/v3/physic"
)

// DefaultFrequency is the SPI clock used when none is configured.
const DefaultFrequency = 10 * physic.MegaHertz

// Locked serialises writes of several devices sharing one physical bus.
type Locked struct {
	mu  *sync.Mutex
	bus mcp492x.Bus
}

// NewLocked wraps bus so every write holds mu. Pass the same mutex to all
// wrappers of one bus.
func NewLocked(mu *sync.Mutex, bus mcp492x.Bus) *Locked {
	return &Locked{mu: mu, bus: bus}
}

func (l *Locked) WriteBytes(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bus.WriteBytes(data)
}
