package ds1624

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mklimuk/hwmon"
)

// decodeTemperature converts the two temperature bytes into millidegrees.
// The first byte holds signed whole degrees, the upper nibble of the second
// one the fraction in 62 millidegree steps.
func decodeTemperature(raw []byte) int {
	return int(int8(raw[0]))*1000 + int(raw[1]>>4)*62
}

// FormatConfig renders a register value as two hex digits.
func FormatConfig(v byte) string {
	return fmt.Sprintf("%02x", v)
}

// ParseConfig parses a hexadecimal byte such as "01", "0x8f" or "f\n".
func ParseConfig(s string) (byte, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 2 && (trimmed[:2] == "0x" || trimmed[:2] == "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) == 0 || len(trimmed) > 2 {
		return 0, fmt.Errorf("%w: %q is not a hex byte", hwmon.ErrInvalidInput, s)
	}
	v, err := strconv.ParseUint(trimmed, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a hex byte", hwmon.ErrInvalidInput, s)
	}
	return byte(v), nil
}
