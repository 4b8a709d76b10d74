package ds1624

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mklimuk/hwmon/attr"
)

const (
	AttrTemperature = "temperature"
	AttrConfig      = "config"
)

// GetTemperature renders the temperature in millidegrees Celsius.
func (d *Dev) GetTemperature(ctx context.Context) (string, error) {
	mc, err := d.ReadTemperature(ctx)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(mc), nil
}

// GetConfig renders the configuration register as two hex digits.
func (d *Dev) GetConfig(ctx context.Context) (string, error) {
	v, err := d.ReadConfig(ctx)
	if err != nil {
		return "", err
	}
	return FormatConfig(v), nil
}

// SetConfig parses value as a hex byte and writes it to the configuration
// register. Malformed input is rejected before the bus is touched.
func (d *Dev) SetConfig(ctx context.Context, value string) error {
	v, err := ParseConfig(value)
	if err != nil {
		return fmt.Errorf("ds1624: %w", err)
	}
	return d.WriteConfig(ctx, v)
}

func (d *Dev) Attributes() []attr.Attribute {
	return []attr.Attribute{
		{Name: AttrTemperature, Show: d.GetTemperature},
		{Name: AttrConfig, Show: d.GetConfig, Store: d.SetConfig},
	}
}

var _ attr.Provider = &Dev{}
