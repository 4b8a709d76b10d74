// Package ds1624 drives a Maxim DS1624 digital thermometer over I2C.
//
// See: https://www.analog.com/media/en/technical-documentation/data-sheets/DS1624.pdf
package ds1624

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/hwmon"
)

// DefaultAddress is the bus address with A2..A0 tied low.
const DefaultAddress uint16 = 0x48

// DefaultSettlingTime is the worst case temperature conversion time given by
// the datasheet. A read issued earlier may return the previous conversion.
const DefaultSettlingTime = time.Second

// Command bytes
const (
	cmdStartConvert byte = 0xEE
	cmdStopConvert  byte = 0x22
	cmdReadTemp     byte = 0xAA
	regConfig       byte = 0xAC
)

// Configuration/status register bits
//
//	  7   6   5   4   3   2   1   0
//	|DONE| X | X | X | X | X | X |1SHOT|
const (
	ConfigOneShot byte = 0x01
	ConfigDone    byte = 0x80
)

type Opts struct {
	Address      uint16
	SettlingTime time.Duration
	Logger       *slog.Logger
}

type Opt func(*Opts)

func WithAddress(address uint16) Opt {
	return func(o *Opts) {
		o.Address = address
	}
}

// WithSettlingTime overrides the wait between starting a conversion and
// reading the result back.
func WithSettlingTime(d time.Duration) Opt {
	return func(o *Opts) {
		o.SettlingTime = d
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = logger
	}
}

// Dev represents one attached DS1624.
//
// All bus sequences against a Dev are serialised by a single guard which is
// held for the whole sequence, conversion wait included. The guard can be
// waited on with a context but a sequence that already started always runs
// to completion.
//
// Typical usage:
//
//	d := ds1624.New(bus)
//	mc, err := d.ReadTemperature(ctx)
type Dev struct {
	guard     chan struct{}
	transport hwmon.Transport
	addr      uint16
	config    Opts
	logger    *slog.Logger
}

func New(transport hwmon.Transport, opts ...Opt) *Dev {
	config := Opts{
		Address:      DefaultAddress,
		SettlingTime: DefaultSettlingTime,
	}
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dev{
		guard:     make(chan struct{}, 1),
		transport: transport,
		addr:      config.Address,
		config:    config,
		logger:    logger.With("device", "ds1624", "addr", fmt.Sprintf("%#02x", config.Address)),
	}
}

func (d *Dev) Address() uint16 {
	return d.addr
}

func (d *Dev) SettlingTime() time.Duration {
	return d.config.SettlingTime
}

func (d *Dev) String() string {
	return fmt.Sprintf("ds1624: %#02x", d.addr)
}

// lock acquires the device guard. It returns the context to be used for bus
// operations, which is no longer cancellable.
func (d *Dev) lock(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ds1624: waiting for device: %w", err)
	}
	select {
	case d.guard <- struct{}{}:
		return context.WithoutCancel(ctx), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("ds1624: waiting for device: %w", ctx.Err())
	}
}

func (d *Dev) unlock() {
	<-d.guard
}

// ReadTemperature starts a conversion, waits for it to settle and reads the
// result back. The value is returned in millidegrees Celsius.
func (d *Dev) ReadTemperature(ctx context.Context) (int, error) {
	busCtx, err := d.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer d.unlock()

	start := []hwmon.Msg{hwmon.WriteMsg(d.addr, cmdStartConvert)}
	n, err := d.transport.Transfer(busCtx, start)
	if err := hwmon.CheckTransfer("start conversion", d.addr, len(start), n, err); err != nil {
		return 0, fmt.Errorf("ds1624: %w", err)
	}

	if d.config.SettlingTime > 0 {
		time.Sleep(d.config.SettlingTime)
	}

	read := []hwmon.Msg{
		hwmon.WriteMsg(d.addr, cmdReadTemp),
		hwmon.ReadMsg(d.addr, 2),
	}
	n, err = d.transport.Transfer(busCtx, read)
	if err := hwmon.CheckTransfer("read temperature", d.addr, len(read), n, err); err != nil {
		return 0, fmt.Errorf("ds1624: %w", err)
	}
	raw := read[1].Buf
	mc := decodeTemperature(raw)
	d.logger.Debug("temperature read", "raw", hex.EncodeToString(raw), "millidegrees", mc)
	return mc, nil
}

// ReadConfig returns the configuration/status register.
func (d *Dev) ReadConfig(ctx context.Context) (byte, error) {
	busCtx, err := d.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer d.unlock()
	return d.readConfig(busCtx)
}

func (d *Dev) readConfig(ctx context.Context) (byte, error) {
	v, err := d.transport.ReadRegister(ctx, d.addr, regConfig)
	if err != nil {
		return 0, fmt.Errorf("ds1624: %w", &hwmon.BusError{Op: "read config", Addr: d.addr, Requested: 1, Err: err})
	}
	return v & 0xFF, nil
}

// WriteConfig replaces the configuration register with value. Callers that
// want to keep reserved bits should read the register first or use
// UpdateConfig.
func (d *Dev) WriteConfig(ctx context.Context, value byte) error {
	busCtx, err := d.lock(ctx)
	if err != nil {
		return err
	}
	defer d.unlock()
	return d.writeConfig(busCtx, value)
}

func (d *Dev) writeConfig(ctx context.Context, value byte) error {
	err := d.transport.WriteRegister(ctx, d.addr, regConfig, value&0xFF)
	if err != nil {
		return fmt.Errorf("ds1624: %w", &hwmon.BusError{Op: "write config", Addr: d.addr, Requested: 1, Err: err})
	}
	d.logger.Debug("config written", "value", FormatConfig(value))
	return nil
}

// UpdateConfig sets the bits selected by mask to bits and leaves the rest of
// the register untouched. The read and the write happen under one guard
// hold. The resulting register value is returned.
func (d *Dev) UpdateConfig(ctx context.Context, mask, bits byte) (byte, error) {
	busCtx, err := d.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer d.unlock()
	current, err := d.readConfig(busCtx)
	if err != nil {
		return 0, err
	}
	next := current&^mask | bits&mask
	if next == current {
		return current, nil
	}
	if err := d.writeConfig(busCtx, next); err != nil {
		return 0, err
	}
	return next, nil
}

// StopConversion halts continuous conversion.
func (d *Dev) StopConversion(ctx context.Context) error {
	busCtx, err := d.lock(ctx)
	if err != nil {
		return err
	}
	defer d.unlock()
	stop := []hwmon.Msg{hwmon.WriteMsg(d.addr, cmdStopConvert)}
	n, err := d.transport.Transfer(busCtx, stop)
	if err := hwmon.CheckTransfer("stop conversion", d.addr, len(stop), n, err); err != nil {
		return fmt.Errorf("ds1624: %w", err)
	}
	return nil
}
