// Package smbus adapts a gobot I2C connection to hwmon.Transport. It is used
// on boards driven through gobot platform adaptors (NanoPi, Raspberry Pi...)
// where the kernel exposes SMBus style operations.
package smbus

import (
	"context"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/hwmon"
)

// Conn is the subset of a gobot i2c.Connection used by the transport.
type Conn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	ReadByteData(reg uint8) (uint8, error)
	WriteByteData(reg uint8, val uint8) error
	ReadBlockData(reg uint8, b []byte) error
	Close() error
}

var _ Conn = i2c.Connection(nil)

// Bus is a transport bound to a single device address. gobot connections
// are opened per address, so messages for any other address are rejected.
type Bus struct {
	mx   sync.Mutex
	conn Conn
	addr uint16
}

// Open opens a connection to addr on bus busNr of the given adaptor. A
// negative busNr selects the adaptor's default bus.
func Open(connector i2c.Connector, busNr int, addr uint16) (*Bus, error) {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	conn, err := connector.GetI2cConnection(int(addr), busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c connection to %#02x on bus %d: %w", addr, busNr, err)
	}
	return New(conn, addr), nil
}

func New(conn Conn, addr uint16) *Bus {
	return &Bus{conn: conn, addr: addr}
}

func (b *Bus) checkAddr(addr uint16) error {
	if addr != b.addr {
		return fmt.Errorf("connection bound to %#02x, got message for %#02x", b.addr, addr)
	}
	return nil
}

// Transfer maps messages to SMBus operations. A single byte command followed
// by a read is issued as an I2C block read so both phases share one
// transaction.
func (b *Bus) Transfer(ctx context.Context, msgs []hwmon.Msg) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	done := 0
	for done < len(msgs) {
		msg := msgs[done]
		if err := b.checkAddr(msg.Addr); err != nil {
			return done, err
		}
		switch {
		case msg.Dir == hwmon.Write && len(msg.Buf) == 1 && done+1 < len(msgs) && msgs[done+1].Dir == hwmon.Read:
			next := msgs[done+1]
			if err := b.checkAddr(next.Addr); err != nil {
				return done, err
			}
			if err := b.conn.ReadBlockData(msg.Buf[0], next.Buf); err != nil {
				return done, fmt.Errorf("block read of %#02x failed: %w", msg.Buf[0], err)
			}
			done += 2
		case msg.Dir == hwmon.Write:
			n, err := b.conn.Write(msg.Buf)
			if err != nil {
				return done, fmt.Errorf("write failed: %w", err)
			}
			if n != len(msg.Buf) {
				return done, fmt.Errorf("short write: %d of %d bytes", n, len(msg.Buf))
			}
			done++
		default:
			n, err := b.conn.Read(msg.Buf)
			if err != nil {
				return done, fmt.Errorf("read failed: %w", err)
			}
			if n != len(msg.Buf) {
				return done, fmt.Errorf("short read: %d of %d bytes", n, len(msg.Buf))
			}
			done++
		}
	}
	return done, nil
}

func (b *Bus) ReadRegister(ctx context.Context, addr uint16, reg byte) (byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := b.checkAddr(addr); err != nil {
		return 0, err
	}
	v, err := b.conn.ReadByteData(reg)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#02x: %w", reg, err)
	}
	return v, nil
}

func (b *Bus) WriteRegister(ctx context.Context, addr uint16, reg, value byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := b.checkAddr(addr); err != nil {
		return err
	}
	if err := b.conn.WriteByteData(reg, value); err != nil {
		return fmt.Errorf("could not write register %#02x: %w", reg, err)
	}
	return nil
}

func (b *Bus) Close() error {
	return b.conn.Close()
}

var _ hwmon.Transport = &Bus{}
