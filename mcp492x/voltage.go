package mcp492x

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

const stepCount = 1 << Resolution

func (d *Dev) fullScale() physic.ElectricPotential {
	if d.gain {
		return d.vRef
	}
	return 2 * d.vRef
}

// Voltage returns the output voltage the last value of channel produces
// with the current reference and gain setting: vRef * G * value / 4096.
func (d *Dev) Voltage(channel int) (physic.ElectricPotential, error) {
	value, err := d.Read(channel)
	if err != nil {
		return 0, err
	}
	return d.fullScale() * physic.ElectricPotential(value) / stepCount, nil
}

// CountFor converts v to the nearest code for the current reference and
// gain setting.
func (d *Dev) CountFor(v physic.ElectricPotential) (int, error) {
	fs := d.fullScale()
	if v < 0 {
		return 0, fmt.Errorf("%w: %s is negative", ErrValueRange, v)
	}
	count := (int64(v)*stepCount + int64(fs)/2) / int64(fs)
	if count > MaxValue {
		return 0, fmt.Errorf("%w: %s above full scale %s", ErrValueRange, v, fs)
	}
	return int(count), nil
}
