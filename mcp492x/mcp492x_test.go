package mcp492x_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lautenbacher.net/godac/hardware"
	"lautenbacher.net/godac/mcp492x"
	"periph.io/x/conn/v3/physic"
)

const vref = 3300 * physic.MilliVolt

func newDev(t *testing.T, channels int) (*mcp492x.Dev, *hardware.Recorder) {
	t.Helper()
	rec := hardware.NewRecorder(16)
	dev, err := mcp492x.New(rec, 0, channels, vref)
	require.NoError(t, err)
	return dev, rec
}

func TestNew_Defaults(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4922)

	assert.False(t, dev.Buffered())
	assert.False(t, dev.Gain())
	assert.False(t, dev.Shutdown())
	assert.Equal(t, []int{0, 0}, dev.Values())
	assert.Equal(t, 2, dev.Channels())
	assert.Equal(t, mcp492x.Resolution, dev.Resolution())
	assert.Equal(t, vref, dev.VRef())
	assert.Equal(t, 0, rec.Count(), "construction must not touch the bus")
}

func TestNew_InvalidArguments(t *testing.T) {
	rec := hardware.NewRecorder(1)

	_, err := mcp492x.New(rec, 0, 3, vref)
	assert.ErrorIs(t, err, mcp492x.ErrChannelCount)

	_, err = mcp492x.New(rec, 0, 0, vref)
	assert.ErrorIs(t, err, mcp492x.ErrChannelCount)

	_, err = mcp492x.New(rec, -1, 1, vref)
	assert.ErrorIs(t, err, mcp492x.ErrChip)

	_, err = mcp492x.New(rec, 0, 1, 0)
	assert.ErrorIs(t, err, mcp492x.ErrVRef)
}

func TestString(t *testing.T) {
	rec := hardware.NewRecorder(1)
	single, err := mcp492x.NewMCP4921(rec, 0, vref)
	require.NoError(t, err)
	dual, err := mcp492x.NewMCP4922(rec, 1, vref)
	require.NoError(t, err)

	assert.Equal(t, "MCP4921(chip=0)", single.String())
	assert.Equal(t, "MCP4922(chip=1)", dual.String())
}

func TestWrite_SingleChannelDefaults(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4921)

	require.NoError(t, dev.Write(0, 2048))

	assert.Equal(t, []byte{0x38, 0x00}, rec.Last())
	assert.Equal(t, 1, rec.Count())
}

func TestWrite_ShutdownSecondChannel(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4922)
	dev.SetShutdown(true)

	require.NoError(t, dev.Write(1, 0))

	assert.Equal(t, []byte{0xA0, 0x00}, rec.Last())
}

func TestWrite_ValueBits(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4922)

	for _, value := range []int{0, 1, 255, 256, 1000, 2047, 2048, 3000, 4094, 4095} {
		for channel := 0; channel < 2; channel++ {
			require.NoError(t, dev.Write(channel, value))
			frame := rec.Last()
			require.Len(t, frame, mcp492x.FrameSize)

			assert.Equal(t, byte(channel&1), frame[0]>>7, "channel bit for %d", value)
			assert.Equal(t, byte((value>>8)&0xF), frame[0]&0x0F, "high nibble for %d", value)
			assert.Equal(t, byte(value&0xFF), frame[1], "low byte for %d", value)
		}
	}
}

func TestWrite_FlagCombinations(t *testing.T) {
	tests := []struct {
		buffered, gain, shutdown bool
		byte0                    byte
	}{
		{false, false, false, 0x3A},
		{true, false, false, 0x7A},
		{false, true, false, 0x1A},
		{false, false, true, 0x2A},
		{true, true, false, 0x5A},
		{true, false, true, 0x6A},
		{false, true, true, 0x0A},
		{true, true, true, 0x4A},
	}

	for _, tt := range tests {
		dev, rec := newDev(t, mcp492x.Channels4922)
		dev.SetBuffered(tt.buffered)
		dev.SetGain(tt.gain)
		dev.SetShutdown(tt.shutdown)

		require.NoError(t, dev.Write(0, 0xABC))
		assert.Equal(t, []byte{tt.byte0, 0xBC}, rec.Last(), "buffered=%v gain=%v shutdown=%v", tt.buffered, tt.gain, tt.shutdown)

		require.NoError(t, dev.Write(1, 0xABC))
		assert.Equal(t, []byte{tt.byte0 | 0x80, 0xBC}, rec.Last(), "channel 1 buffered=%v gain=%v shutdown=%v", tt.buffered, tt.gain, tt.shutdown)
	}
}

func TestWrite_InvertedBits(t *testing.T) {
	dev, _ := newDev(t, mcp492x.Channels4921)

	frame, err := dev.Encode(0, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(1), frame[0]>>5&1, "gain x2 sets bit 5")
	assert.Equal(t, byte(1), frame[0]>>4&1, "active output sets bit 4")

	dev.SetGain(true)
	dev.SetShutdown(true)
	frame, err = dev.Encode(0, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), frame[0]>>5&1, "gain x1 clears bit 5")
	assert.Equal(t, byte(0), frame[0]>>4&1, "shutdown clears bit 4")
}

func TestEncode_Deterministic(t *testing.T) {
	dev, _ := newDev(t, mcp492x.Channels4922)
	dev.SetBuffered(true)

	first, err := dev.Encode(1, 1234)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := dev.Encode(1, 1234)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSetters_DoNotWrite(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4922)

	dev.SetBuffered(true)
	dev.SetGain(true)
	dev.SetShutdown(true)

	assert.Equal(t, 0, rec.Count())
	assert.True(t, dev.Buffered())
	assert.True(t, dev.Gain())
	assert.True(t, dev.Shutdown())
}

func TestRead_AfterWrite(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4922)

	require.NoError(t, dev.Write(0, 100))
	require.NoError(t, dev.Write(1, 4095))
	written := rec.Count()

	for i := 0; i < 3; i++ {
		v, err := dev.Read(0)
		require.NoError(t, err)
		assert.Equal(t, 100, v)

		v, err = dev.Read(1)
		require.NoError(t, err)
		assert.Equal(t, 4095, v)
	}
	assert.Equal(t, written, rec.Count(), "Read must not touch the bus")
}

func TestChannelOutOfRange(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4921)

	err := dev.Write(1, 10)
	assert.ErrorIs(t, err, mcp492x.ErrChannelRange)
	err = dev.Write(-1, 10)
	assert.ErrorIs(t, err, mcp492x.ErrChannelRange)
	assert.Equal(t, 0, rec.Count())

	_, err = dev.Read(1)
	assert.ErrorIs(t, err, mcp492x.ErrChannelRange)
}

func TestValueOutOfRange(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4921)
	require.NoError(t, dev.Write(0, 7))

	for _, value := range []int{-1, 4096, 1 << 16} {
		err := dev.Write(0, value)
		assert.ErrorIs(t, err, mcp492x.ErrValueRange, "value %d", value)
	}

	assert.Equal(t, 1, rec.Count())
	v, err := dev.Read(0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestWrite_TransportFailure(t *testing.T) {
	dev, rec := newDev(t, mcp492x.Channels4922)
	require.NoError(t, dev.Write(1, 500))

	busErr := errors.New("bus not ready")
	rec.FailWith(busErr)

	err := dev.Write(1, 600)
	assert.ErrorIs(t, err, busErr)

	v, err := dev.Read(1)
	require.NoError(t, err)
	assert.Equal(t, 500, v, "failed write must not update the cache")

	rec.FailWith(nil)
	require.NoError(t, dev.Write(1, 600))
	v, err = dev.Read(1)
	require.NoError(t, err)
	assert.Equal(t, 600, v)
}

func TestAnalogOutput(t *testing.T) {
	dev, _ := newDev(t, mcp492x.Channels4922)
	var out mcp492x.AnalogOutput = dev

	require.NoError(t, out.Write(1, 42))
	v, err := out.Read(1)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
