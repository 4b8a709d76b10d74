package ds1624

import (
	"context"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// Resolution is the smallest temperature step reported by ReadTemperature.
const Resolution = 62 * physic.MilliKelvin

// Sense performs a single conversion and stores the result in env.
func (d *Dev) Sense(env *physic.Env) error {
	mc, err := d.ReadTemperature(context.Background())
	if err != nil {
		return err
	}
	env.Temperature = physic.ZeroCelsius + physic.Temperature(mc)*physic.MilliKelvin
	return nil
}

func (d *Dev) Precision(env *physic.Env) {
	env.Temperature = Resolution
	env.Pressure = 0
	env.Humidity = 0
}

// Halt stops continuous conversion. Implements conn.Resource.
func (d *Dev) Halt() error {
	return d.StopConversion(context.Background())
}

var _ conn.Resource = &Dev{}
