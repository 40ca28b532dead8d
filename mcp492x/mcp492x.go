// Package mcp492x drives the Microchip MCP4921 and MCP4922 12-bit SPI
// digital to analog converters.
//
// Each update is a single 16-bit command frame carrying the channel
// select bit, the buffered reference, gain and shutdown bits and the
// 12-bit output code. The chip has no way to change its mode bits without
// also loading a new code, so the flag setters only take effect on the
// next Write.
//
// A Dev holds no lock. Callers sharing one Dev between goroutines must
// serialise access themselves.
package mcp492x

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

const (
	// Resolution is the DAC resolution in bits.
	Resolution = 12
	// MaxValue is the largest code accepted by Write.
	MaxValue = 1<<Resolution - 1

	// Channels4921 and Channels4922 are the output counts of the two variants.
	Channels4921 = 1
	Channels4922 = 2

	// FrameSize is the number of bytes sent per update.
	FrameSize = 2
)

var (
	ErrChannelRange = errors.New("mcp492x: channel out of range")
	ErrChannelCount = errors.New("mcp492x: channel count must be 1 or 2")
	ErrValueRange   = errors.New("mcp492x: value out of range")
	ErrChip         = errors.New("mcp492x: chip select must not be negative")
	ErrVRef         = errors.New("mcp492x: reference voltage must be positive")
)

// Bus is the byte sink a Dev writes its frames to. WriteBytes either
// transmits all of data or returns an error.
type Bus interface {
	WriteBytes(data []byte) error
}

// AnalogOutput is the capability a Dev exposes to generic consumers.
type AnalogOutput interface {
	Write(channel, value int) error
	Read(channel int) (int, error)
}

// flag identifies one of the mode bits in the upper frame byte.
type flag int

const (
	flagBuffered flag = iota
	flagGain
	flagShutdown
)

// flagBits maps each mode flag to its position in byte 0. Inverted flags
// put a 1 on the wire when the flag is false.
var flagBits = [...]struct {
	bit      uint
	inverted bool
}{
	flagBuffered: {bit: 6, inverted: false},
	flagGain:     {bit: 5, inverted: true},
	flagShutdown: {bit: 4, inverted: true},
}

const channelBit = 7

func (f flag) encode(set bool) byte {
	b := flagBits[f]
	if set != b.inverted {
		return 1 << b.bit
	}
	return 0
}

// Dev is an MCP4921 or MCP4922 on an SPI bus.
type Dev struct {
	bus      Bus
	chip     int
	vRef     physic.ElectricPotential
	buffered bool
	gain     bool
	shutdown bool
	values   []int
}

var _ AnalogOutput = (*Dev)(nil)

// New returns a Dev with channels outputs (1 or 2) behind chip select
// chip. vRef is only used to interpret codes as voltages; it never
// changes what is sent to the chip.
//
// The device starts unbuffered, at gain x2, powered up, with every
// channel at code 0. Nothing is written to the bus.
func New(bus Bus, chip, channels int, vRef physic.ElectricPotential) (*Dev, error) {
	if channels != Channels4921 && channels != Channels4922 {
		return nil, fmt.Errorf("%w: got %d", ErrChannelCount, channels)
	}
	if chip < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrChip, chip)
	}
	if vRef <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrVRef, vRef)
	}
	return &Dev{
		bus:    bus,
		chip:   chip,
		vRef:   vRef,
		values: make([]int, channels),
	}, nil
}

// NewMCP4921 returns a single channel device.
func NewMCP4921(bus Bus, chip int, vRef physic.ElectricPotential) (*Dev, error) {
	return New(bus, chip, Channels4921, vRef)
}

// NewMCP4922 returns a dual channel device.
func NewMCP4922(bus Bus, chip int, vRef physic.ElectricPotential) (*Dev, error) {
	return New(bus, chip, Channels4922, vRef)
}

func (d *Dev) String() string {
	return fmt.Sprintf("MCP492%d(chip=%d)", len(d.values), d.chip)
}

func (d *Dev) Resolution() int                { return Resolution }
func (d *Dev) Chip() int                      { return d.chip }
func (d *Dev) Channels() int                  { return len(d.values) }
func (d *Dev) VRef() physic.ElectricPotential { return d.vRef }
func (d *Dev) Buffered() bool                 { return d.buffered }
func (d *Dev) Gain() bool                     { return d.gain }
func (d *Dev) Shutdown() bool                 { return d.shutdown }

// SetBuffered selects the buffered reference input on the next Write.
func (d *Dev) SetBuffered(on bool) { d.buffered = on }

// SetGain selects gain x1 when on is true and gain x2 when false. It takes
// effect on the next Write.
func (d *Dev) SetGain(on bool) { d.gain = on }

// SetShutdown puts the output stage into shutdown on the next Write.
func (d *Dev) SetShutdown(on bool) { d.shutdown = on }

// Encode returns the frame Write would send for channel and value with
// the current flags.
func (d *Dev) Encode(channel, value int) ([FrameSize]byte, error) {
	var frame [FrameSize]byte
	if err := d.checkChannel(channel); err != nil {
		return frame, err
	}
	if value < 0 || value > MaxValue {
		return frame, fmt.Errorf("%w: %d not in [0, %d]", ErrValueRange, value, MaxValue)
	}
	frame[0] = byte(channel&0x1) << channelBit
	frame[0] |= flagBuffered.encode(d.buffered)
	frame[0] |= flagGain.encode(d.gain)
	frame[0] |= flagShutdown.encode(d.shutdown)
	frame[0] |= byte(value>>8) & 0x0F
	frame[1] = byte(value & 0xFF)
	return frame, nil
}

// Write sends value to channel. The value is only remembered for Read
// once the bus accepted the frame.
func (d *Dev) Write(channel, value int) error {
	frame, err := d.Encode(channel, value)
	if err != nil {
		return err
	}
	if err := d.bus.WriteBytes(frame[:]); err != nil {
		return fmt.Errorf("mcp492x: %s write: %w", d, err)
	}
	d.values[channel] = value
	return nil
}

// Read returns the last value written to channel. The chip cannot be read
// back, so this never touches the bus.
func (d *Dev) Read(channel int) (int, error) {
	if err := d.checkChannel(channel); err != nil {
		return 0, err
	}
	return d.values[channel], nil
}

// Values returns a copy of the last value of every channel.
func (d *Dev) Values() []int {
	out := make([]int, len(d.values))
	copy(out, d.values)
	return out
}

func (d *Dev) checkChannel(channel int) error {
	if channel < 0 || channel >= len(d.values) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrChannelRange, channel, len(d.values))
	}
	return nil
}
