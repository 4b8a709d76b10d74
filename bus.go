package hwmon

import (
	"context"
)

// Direction tells whether a message writes to or reads from the device.
type Direction uint8

const (
	Write Direction = iota
	Read
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// Msg is a single addressed segment of a bus transaction.
type Msg struct {
	Addr uint16
	Dir  Direction
	Buf  []byte
}

// WriteMsg builds a write segment addressed to addr.
func WriteMsg(addr uint16, buf ...byte) Msg {
	return Msg{Addr: addr, Dir: Write, Buf: buf}
}

// ReadMsg builds a read segment of size n addressed to addr.
func ReadMsg(addr uint16, n int) Msg {
	return Msg{Addr: addr, Dir: Read, Buf: make([]byte, n)}
}

// Transport moves bytes between the host and devices on one physical bus.
//
// Transfer executes msgs as a single combined transaction (repeated start
// between segments, one stop at the end) and returns the number of segments
// that completed. Implementations serialise their own transfers; device level
// serialisation is left to the driver.
type Transport interface {
	Transfer(ctx context.Context, msgs []Msg) (int, error)
	ReadRegister(ctx context.Context, addr uint16, reg byte) (byte, error)
	WriteRegister(ctx context.Context, addr uint16, reg, value byte) error
}
