// Package ds1624test provides an in-memory DS1624 that can be used as a bus
// transport in tests and in the CLI simulation mode.
package ds1624test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/hwmon"
)

const (
	cmdStartConvert byte = 0xEE
	cmdStopConvert  byte = 0x22
	cmdReadTemp     byte = 0xAA
	regConfig       byte = 0xAC
	configDone      byte = 0x80
)

var ErrNack = errors.New("address not acknowledged")
var ErrInjected = errors.New("injected bus fault")

// Op is one command observed on the bus.
type Op struct {
	Cmd   byte
	Value byte
	Read  bool
}

func (o Op) String() string {
	if o.Read {
		return fmt.Sprintf("R%02x", o.Cmd)
	}
	return fmt.Sprintf("W%02x", o.Cmd)
}

// Device simulates a single DS1624 at a fixed address. Reads of the register
// file and writes to it are not restricted the way the silicon restricts
// them: every written config bit reads back.
type Device struct {
	mx         sync.Mutex
	addr       uint16
	raw        [2]byte
	config     byte
	converting bool
	ops        []Op
	calls      int

	shortTransfers int
	failRegisters  int
}

func New(addr uint16) *Device {
	return &Device{addr: addr}
}

// SetTemperature sets the value returned by the next conversions.
func (d *Device) SetTemperature(millidegrees int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.raw = RawSample(millidegrees)
}

// SetRaw sets the raw temperature bytes returned by the next conversions.
func (d *Device) SetRaw(msb, lsb byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.raw = [2]byte{msb, lsb}
}

// ShortTransfers makes the next n transfers complete no message.
func (d *Device) ShortTransfers(n int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.shortTransfers = n
}

// FailRegisters makes the next n register operations fail.
func (d *Device) FailRegisters(n int) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.failRegisters = n
}

// Ops returns a copy of the command log.
func (d *Device) Ops() []Op {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]Op(nil), d.ops...)
}

// Calls returns the number of transport calls made so far.
func (d *Device) Calls() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.calls
}

func (d *Device) Converting() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.converting
}

func (d *Device) Config() byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.config
}

func (d *Device) Transfer(ctx context.Context, msgs []hwmon.Msg) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.calls++
	if d.shortTransfers > 0 {
		d.shortTransfers--
		return 0, nil
	}
	var cmd byte
	for i, msg := range msgs {
		if msg.Addr != d.addr {
			return i, fmt.Errorf("%#02x: %w", msg.Addr, ErrNack)
		}
		switch msg.Dir {
		case hwmon.Write:
			if len(msg.Buf) == 0 {
				continue
			}
			cmd = msg.Buf[0]
			d.ops = append(d.ops, Op{Cmd: cmd})
			switch cmd {
			case cmdStartConvert:
				d.converting = true
				d.config |= configDone
			case cmdStopConvert:
				d.converting = false
			case regConfig:
				if len(msg.Buf) > 1 {
					d.config = msg.Buf[1]
				}
			}
		case hwmon.Read:
			d.ops = append(d.ops, Op{Cmd: cmd, Read: true})
			switch cmd {
			case cmdReadTemp:
				copy(msg.Buf, d.raw[:])
			case regConfig:
				if len(msg.Buf) > 0 {
					msg.Buf[0] = d.config
				}
			}
		}
	}
	return len(msgs), nil
}

func (d *Device) ReadRegister(ctx context.Context, addr uint16, reg byte) (byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.calls++
	if err := d.checkRegister(addr); err != nil {
		return 0, err
	}
	d.ops = append(d.ops, Op{Cmd: reg, Read: true})
	if reg != regConfig {
		return 0, nil
	}
	return d.config, nil
}

func (d *Device) WriteRegister(ctx context.Context, addr uint16, reg, value byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.calls++
	if err := d.checkRegister(addr); err != nil {
		return err
	}
	d.ops = append(d.ops, Op{Cmd: reg, Value: value})
	if reg == regConfig {
		d.config = value
	}
	return nil
}

func (d *Device) checkRegister(addr uint16) error {
	if addr != d.addr {
		return fmt.Errorf("%#02x: %w", addr, ErrNack)
	}
	if d.failRegisters > 0 {
		d.failRegisters--
		return ErrInjected
	}
	return nil
}

// RawSample encodes millidegrees into the two temperature bytes so that the
// driver decodes it back to the nearest representable value.
func RawSample(millidegrees int) [2]byte {
	whole := millidegrees / 1000
	rest := millidegrees - whole*1000
	if rest < 0 {
		whole--
		rest += 1000
	}
	frac := (rest + 31) / 62
	if frac > 15 {
		frac = 15
	}
	return [2]byte{byte(int8(whole)), byte(frac << 4)}
}

var _ hwmon.Transport = &Device{}
