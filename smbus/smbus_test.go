package smbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/hwmon"
)

type fakeConn struct {
	writes    [][]byte
	regs      map[uint8]uint8
	block     map[uint8][]byte
	failWrite error
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{regs: map[uint8]uint8{}, block: map[uint8][]byte{}}
}

func (f *fakeConn) Read(b []byte) (int, error) {
	return len(b), nil
}

func (f *fakeConn) Write(b []byte) (int, error) {
	if f.failWrite != nil {
		return 0, f.failWrite
	}
	f.writes = append(f.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeConn) ReadByteData(reg uint8) (uint8, error) {
	return f.regs[reg], nil
}

func (f *fakeConn) WriteByteData(reg uint8, val uint8) error {
	f.regs[reg] = val
	return nil
}

func (f *fakeConn) ReadBlockData(reg uint8, b []byte) error {
	data, ok := f.block[reg]
	if !ok {
		return errors.New("remote i/o error")
	}
	copy(b, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestBus_Transfer(t *testing.T) {
	conn := newFakeConn()
	conn.block[0xAA] = []byte{0x19, 0x80}
	bus := New(conn, 0x48)
	ctx := context.Background()

	n, err := bus.Transfer(ctx, []hwmon.Msg{hwmon.WriteMsg(0x48, 0xEE)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, [][]byte{{0xEE}}, conn.writes)

	msgs := []hwmon.Msg{hwmon.WriteMsg(0x48, 0xAA), hwmon.ReadMsg(0x48, 2)}
	n, err = bus.Transfer(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0x19, 0x80}, msgs[1].Buf)
	assert.Len(t, conn.writes, 1, "combined read must not issue a plain write")
}

func TestBus_TransferFailures(t *testing.T) {
	conn := newFakeConn()
	bus := New(conn, 0x48)
	ctx := context.Background()

	n, err := bus.Transfer(ctx, []hwmon.Msg{hwmon.WriteMsg(0x49, 0xEE)})
	assert.Error(t, err)
	assert.Equal(t, 0, n)

	n, err = bus.Transfer(ctx, []hwmon.Msg{hwmon.WriteMsg(0x48, 0xAA), hwmon.ReadMsg(0x48, 2)})
	assert.Error(t, err)
	assert.Equal(t, 0, n)

	conn.failWrite = errors.New("nack")
	n, err = bus.Transfer(ctx, []hwmon.Msg{hwmon.WriteMsg(0x48, 0x22)})
	assert.ErrorIs(t, err, conn.failWrite)
	assert.Equal(t, 0, n)
}

func TestBus_Registers(t *testing.T) {
	conn := newFakeConn()
	bus := New(conn, 0x48)
	ctx := context.Background()

	require.NoError(t, bus.WriteRegister(ctx, 0x48, 0xAC, 0x01))
	v, err := bus.ReadRegister(ctx, 0x48, 0xAC)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), v)

	_, err = bus.ReadRegister(ctx, 0x4F, 0xAC)
	assert.Error(t, err)

	require.NoError(t, bus.Close())
	assert.True(t, conn.closed)
}
