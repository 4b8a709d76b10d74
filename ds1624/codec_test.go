package ds1624

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/hwmon"
)

func TestDS1624_DecodeTemperature(t *testing.T) {
	tests := []struct {
		given    []byte
		expected int
	}{
		{[]byte{0x19, 0x80}, 25496},
		{[]byte{0x00, 0x00}, 0},
		{[]byte{0x19, 0x0F}, 25000},
		{[]byte{0x7D, 0x00}, 125000},
		{[]byte{0x7D, 0xF0}, 125930},
		{[]byte{0xC9, 0x00}, -55000},
		{[]byte{0xFF, 0xF0}, -70},
		{[]byte{0x80, 0x10}, -127938},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.Equal(t, test.expected, decodeTemperature(test.given))
		})
	}
}

func TestDS1624_ParseConfig(t *testing.T) {
	tests := []struct {
		given    string
		expected byte
		invalid  bool
	}{
		{given: "01", expected: 0x01},
		{given: "8f", expected: 0x8F},
		{given: "FF", expected: 0xFF},
		{given: "0x0a", expected: 0x0A},
		{given: "3\n", expected: 0x03},
		{given: " 7e ", expected: 0x7E},
		{given: "", invalid: true},
		{given: "0x", invalid: true},
		{given: "zz", invalid: true},
		{given: "100", invalid: true},
		{given: "-1", invalid: true},
		{given: "1 2", invalid: true},
	}
	for _, test := range tests {
		t.Run(test.given, func(t *testing.T) {
			v, err := ParseConfig(test.given)
			if test.invalid {
				assert.ErrorIs(t, err, hwmon.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expected, v)
		})
	}
}

func TestDS1624_FormatConfig(t *testing.T) {
	assert.Equal(t, "00", FormatConfig(0))
	assert.Equal(t, "0a", FormatConfig(0x0A))
	assert.Equal(t, "ff", FormatConfig(0xFF))
}
