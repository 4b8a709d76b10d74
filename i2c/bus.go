package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/hwmon"
)

var _ hwmon.Transport = &GenericBus{}

// GenericBus is a transport over a periph.io I2C bus, typically a Linux
// i2c-dev character device.
type GenericBus struct {
	mx  sync.Mutex
	bus i2c.Bus
}

// Open initializes host drivers and opens the named bus. An empty name
// selects the first available bus.
func Open(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewGenericBus(bus), nil
}

func NewGenericBus(bus i2c.Bus) *GenericBus {
	return &GenericBus{bus: bus}
}

// Transfer executes msgs in order. A write immediately followed by a read to
// the same address is issued as one combined transaction with a repeated
// start in between.
func (b *GenericBus) Transfer(ctx context.Context, msgs []hwmon.Msg) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	done := 0
	for done < len(msgs) {
		msg := msgs[done]
		var w, r []byte
		step := 1
		switch msg.Dir {
		case hwmon.Write:
			w = msg.Buf
			if done+1 < len(msgs) && msgs[done+1].Dir == hwmon.Read && msgs[done+1].Addr == msg.Addr {
				r = msgs[done+1].Buf
				step = 2
			}
		case hwmon.Read:
			r = msg.Buf
		}
		if err := b.bus.Tx(msg.Addr, w, r); err != nil {
			return done, fmt.Errorf("i2c transfer to %#02x failed: %w", msg.Addr, err)
		}
		done += step
	}
	return done, nil
}

func (b *GenericBus) ReadRegister(ctx context.Context, addr uint16, reg byte) (byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	r := make([]byte, 1)
	if err := b.bus.Tx(addr, []byte{reg}, r); err != nil {
		return 0, fmt.Errorf("could not read register %#02x from %#02x: %w", reg, addr, err)
	}
	return r[0], nil
}

func (b *GenericBus) WriteRegister(ctx context.Context, addr uint16, reg, value byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := b.bus.Tx(addr, []byte{reg, value}, nil); err != nil {
		return fmt.Errorf("could not write register %#02x on %#02x: %w", reg, addr, err)
	}
	return nil
}

// SetSpeed changes the bus clock.
func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.bus.SetSpeed(f)
}

func (b *GenericBus) String() string {
	return b.bus.String()
}

// Close closes the underlying bus if it can be closed.
func (b *GenericBus) Close() error {
	if c, ok := b.bus.(i2c.BusCloser); ok {
		return c.Close()
	}
	return nil
}
