package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/hwmon"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// HID command codes
const (
	cmdStatus             = 0x10
	cmdGetI2CData         = 0x40
	cmdWriteData          = 0x90
	cmdReadData           = 0x91
	cmdReadRepeatedStart  = 0x93
	cmdWriteDataNoStop    = 0x94
	subCmdCancelTransfer  = 0x10
	subCmdSetSpeed        = 0x20
	statusSpeedSet        = 0x20
	statusBusy            = 0x01
	statusGetDataFailed   = 0x41
	maxPayload            = 60
	reportSize            = 64
	clockFrequency        = 12_000_000
	defaultResponseWait   = 50 * time.Millisecond
	invalidDataSizeMarker = 127
)

var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type Opener func() (io.ReadWriteCloser, error)

type MCP2221Opts struct {
	ResponseWait time.Duration
	DeviceIndex  int
	Opener       Opener
	Logger       *slog.Logger
}

type MCP2221Opt func(*MCP2221Opts)

func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.ResponseWait = wait
	}
}

// WithDeviceIndex selects one of several attached bridges.
func WithDeviceIndex(index int) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.DeviceIndex = index
	}
}

// WithOpener replaces HID enumeration, mostly for tests.
func WithOpener(open Opener) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.Opener = open
	}
}

func WithLogger(logger *slog.Logger) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.Logger = logger
	}
}

// MCP2221 is a transport over the Microchip MCP2221 USB to I2C bridge.
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/20005565B.pdf
type MCP2221 struct {
	mx       sync.Mutex
	request  []byte
	response []byte
	config   MCP2221Opts
	logger   *slog.Logger
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	config := MCP2221Opts{
		ResponseWait: defaultResponseWait,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Opener == nil {
		config.Opener = enumerate(config.DeviceIndex)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MCP2221{
		request:  make([]byte, reportSize),
		response: make([]byte, reportSize),
		config:   config,
		logger:   logger.With("adapter", "mcp2221"),
	}
}

func enumerate(index int) Opener {
	return func() (io.ReadWriteCloser, error) {
		devs := hid.Enumerate(VendorID, ProductID)
		if len(devs) == 0 {
			return nil, ErrDeviceNotFound
		}
		if index < 0 || index >= len(devs) {
			return nil, fmt.Errorf("no device with index %d (%d attached)", index, len(devs))
		}
		dev, err := devs[index].Open()
		if err != nil {
			return nil, fmt.Errorf("error opening device: %w", err)
		}
		return dev, nil
	}
}

// SetSpeed sets the I2C clock in Hz.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) error {
	if hz <= 0 || clockFrequency/hz < 4 || clockFrequency/hz-3 > 0xFF {
		return fmt.Errorf("unsupported i2c speed: %d Hz", hz)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = subCmdSetSpeed
	d.request[4] = byte(clockFrequency/hz - 3)
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("set speed request failed: %w", err)
	}
	if d.response[3] != statusSpeedSet {
		return fmt.Errorf("speed not set, transfer in progress: %w", ErrCommandFailed)
	}
	return nil
}

// Transfer issues msgs as MCP2221 I2C commands. A write followed by a read to
// the same address uses the no-stop write and repeated-start read commands.
func (d *MCP2221) Transfer(ctx context.Context, msgs []hwmon.Msg) (int, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	done := 0
	for done < len(msgs) {
		msg := msgs[done]
		if msg.Dir == hwmon.Read {
			if err := d.read(ctx, cmdReadData, msg); err != nil {
				return done, err
			}
			done++
			continue
		}
		if done+1 < len(msgs) && msgs[done+1].Dir == hwmon.Read && msgs[done+1].Addr == msg.Addr {
			if err := d.write(ctx, cmdWriteDataNoStop, msg); err != nil {
				return done, err
			}
			if err := d.read(ctx, cmdReadRepeatedStart, msgs[done+1]); err != nil {
				return done, err
			}
			done += 2
			continue
		}
		if err := d.write(ctx, cmdWriteData, msg); err != nil {
			return done, err
		}
		done++
	}
	return done, nil
}

func (d *MCP2221) ReadRegister(ctx context.Context, addr uint16, reg byte) (byte, error) {
	msgs := []hwmon.Msg{hwmon.WriteMsg(addr, reg), hwmon.ReadMsg(addr, 1)}
	n, err := d.Transfer(ctx, msgs)
	if err := hwmon.CheckTransfer("read register", addr, len(msgs), n, err); err != nil {
		return 0, err
	}
	return msgs[1].Buf[0], nil
}

func (d *MCP2221) WriteRegister(ctx context.Context, addr uint16, reg, value byte) error {
	msgs := []hwmon.Msg{hwmon.WriteMsg(addr, reg, value)}
	n, err := d.Transfer(ctx, msgs)
	return hwmon.CheckTransfer("write register", addr, len(msgs), n, err)
}

func (d *MCP2221) write(ctx context.Context, cmd byte, msg hwmon.Msg) error {
	if len(msg.Buf) > maxPayload {
		return fmt.Errorf("write of %d bytes exceeds %d byte report", len(msg.Buf), maxPayload)
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(msg.Buf)))
	d.request[3] = byte(msg.Addr << 1)
	copy(d.request[4:], msg.Buf)
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("write to %#02x failed: %w", msg.Addr, err)
	}
	if d.response[1] == statusBusy {
		d.logger.Debug("adapter busy")
		return hwmon.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, msg hwmon.Msg) error {
	if len(msg.Buf) > maxPayload {
		return fmt.Errorf("read of %d bytes exceeds %d byte report", len(msg.Buf), maxPayload)
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(msg.Buf)))
	d.request[3] = byte(msg.Addr<<1) | 0x01
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("bus read from %#02x failed: %w", msg.Addr, err)
	}
	if d.response[1] == statusBusy {
		return hwmon.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetI2CData
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == statusGetDataFailed {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine: %w", ErrCommandFailed)
	}
	size := int(d.response[3])
	if size == invalidDataSizeMarker || size != len(msg.Buf) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(msg.Buf), size)
	}
	copy(msg.Buf, d.response[4:4+size])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// ReleaseBus cancels the current I2C transfer and frees the bus.
func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = subCmdCancelTransfer
	if err := d.send(ctx); err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	return &MCP2221Status{
		I2CDataBufferCounter:   int(buffer[13]),
		I2CSpeedDivider:        int(buffer[14]),
		I2CTimeout:             int(buffer[15]),
		ReadPending:            int(buffer[25]),
		CurrentAddress:         hex.EncodeToString(buffer[16:18]),
		LastWriteRequestedSize: binary.LittleEndian.Uint16(buffer[9:11]),
		LastWriteSentSize:      binary.LittleEndian.Uint16(buffer[11:13]),
	}
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.config.Opener()
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			d.logger.Warn("could not close device", "error", err)
		}
	}()
	d.logger.Debug("sending message to adapter", "command", fmt.Sprintf("%#02x", d.request[0]), "dump", hex.EncodeToString(d.request[:8]))
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if d.config.ResponseWait > 0 {
		time.Sleep(d.config.ResponseWait)
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if d.response[0] != d.request[0] {
		return fmt.Errorf("response to %#02x, expected %#02x: %w", d.response[0], d.request[0], ErrCommandFailed)
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

var _ hwmon.Transport = &MCP2221{}
