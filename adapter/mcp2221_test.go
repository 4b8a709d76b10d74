package adapter

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/hwmon"
)

// fakeHID answers MCP2221 reports with a scripted handler.
type fakeHID struct {
	requests [][]byte
	pending  []byte
	handle   func(req []byte, resp []byte)
}

func (f *fakeHID) Write(b []byte) (int, error) {
	req := append([]byte(nil), b...)
	f.requests = append(f.requests, req)
	resp := make([]byte, reportSize)
	resp[0] = req[0]
	if f.handle != nil {
		f.handle(req, resp)
	}
	f.pending = resp
	return len(b), nil
}

func (f *fakeHID) Read(b []byte) (int, error) {
	return copy(b, f.pending), nil
}

func (f *fakeHID) Close() error {
	return nil
}

func newTestAdapter(dev *fakeHID) *MCP2221 {
	return NewMCP2221(
		WithResponseWait(0),
		WithOpener(func() (io.ReadWriteCloser, error) { return dev, nil }),
	)
}

func commands(dev *fakeHID) []byte {
	out := make([]byte, 0, len(dev.requests))
	for _, r := range dev.requests {
		out = append(out, r[0])
	}
	return out
}

func TestMCP2221_CombinedTransfer(t *testing.T) {
	dev := &fakeHID{handle: func(req, resp []byte) {
		if req[0] == cmdGetI2CData {
			resp[3] = 2
			resp[4] = 0x19
			resp[5] = 0x80
		}
	}}
	a := newTestAdapter(dev)

	msgs := []hwmon.Msg{hwmon.WriteMsg(0x48, 0xAA), hwmon.ReadMsg(0x48, 2)}
	n, err := a.Transfer(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x19, 0x80}, msgs[1].Buf)
	assert.Equal(t, []byte{cmdWriteDataNoStop, cmdReadRepeatedStart, cmdGetI2CData}, commands(dev))

	write := dev.requests[0]
	assert.Equal(t, []byte{0x01, 0x00, 0x48 << 1, 0xAA}, write[1:5])
	read := dev.requests[1]
	assert.Equal(t, []byte{0x02, 0x00, 0x48<<1 | 1}, read[1:4])
}

func TestMCP2221_WriteRegister(t *testing.T) {
	dev := &fakeHID{}
	a := newTestAdapter(dev)

	require.NoError(t, a.WriteRegister(context.Background(), 0x48, 0xAC, 0x01))
	assert.Equal(t, []byte{cmdWriteData}, commands(dev))
	assert.Equal(t, []byte{0x02, 0x00, 0x90, 0xAC, 0x01}, dev.requests[0][1:6])
}

func TestMCP2221_ReadRegister(t *testing.T) {
	dev := &fakeHID{handle: func(req, resp []byte) {
		if req[0] == cmdGetI2CData {
			resp[3] = 1
			resp[4] = 0x81
		}
	}}
	a := newTestAdapter(dev)

	v, err := a.ReadRegister(context.Background(), 0x48, 0xAC)
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), v)
}

func TestMCP2221_BusyReportsCompleted(t *testing.T) {
	dev := &fakeHID{handle: func(req, resp []byte) {
		if req[0] == cmdWriteData && req[4] == 0xAA {
			resp[1] = statusBusy
		}
	}}
	a := newTestAdapter(dev)

	n, err := a.Transfer(context.Background(), []hwmon.Msg{
		hwmon.WriteMsg(0x48, 0xEE),
		hwmon.WriteMsg(0x48, 0xAA),
	})
	assert.ErrorIs(t, err, hwmon.ErrBusBusy)
	assert.Equal(t, 1, n)
}

func TestMCP2221_ReadDataFailure(t *testing.T) {
	dev := &fakeHID{handle: func(req, resp []byte) {
		if req[0] == cmdGetI2CData {
			resp[1] = statusGetDataFailed
		}
	}}
	a := newTestAdapter(dev)

	_, err := a.ReadRegister(context.Background(), 0x48, 0xAC)
	assert.ErrorIs(t, err, hwmon.ErrBus)
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestMCP2221_Status(t *testing.T) {
	dev := &fakeHID{handle: func(req, resp []byte) {
		resp[9] = 0x02
		resp[11] = 0x01
		resp[13] = 3
		resp[14] = 0x1B
		resp[15] = 0x7F
		resp[16] = 0x90
		resp[25] = 1
	}}
	a := newTestAdapter(dev)

	status, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &MCP2221Status{
		I2CDataBufferCounter:   3,
		I2CSpeedDivider:        0x1B,
		I2CTimeout:             0x7F,
		CurrentAddress:         "9000",
		LastWriteRequestedSize: 2,
		LastWriteSentSize:      1,
		ReadPending:            1,
	}, status)

	_, err = a.ReleaseBus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(subCmdCancelTransfer), dev.requests[1][2])
}

func TestMCP2221_SetSpeed(t *testing.T) {
	dev := &fakeHID{handle: func(req, resp []byte) {
		resp[3] = statusSpeedSet
	}}
	a := newTestAdapter(dev)

	require.NoError(t, a.SetSpeed(context.Background(), 100_000))
	assert.Equal(t, byte(117), dev.requests[0][4])

	assert.Error(t, a.SetSpeed(context.Background(), 10_000))
}

func TestMCP2221_DeviceMissing(t *testing.T) {
	a := NewMCP2221(WithResponseWait(0), WithOpener(func() (io.ReadWriteCloser, error) {
		return nil, ErrDeviceNotFound
	}))
	_, err := a.Status(context.Background())
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}
