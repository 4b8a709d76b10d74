package hwmon

import (
	"errors"
	"fmt"
)

var ErrBus = errors.New("bus error")
var ErrInvalidInput = errors.New("invalid input")
var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// BusError describes a failed or incomplete bus operation.
type BusError struct {
	Op        string
	Addr      uint16
	Requested int
	Completed int
	Err       error
}

func (e *BusError) Error() string {
	msg := fmt.Sprintf("%s at %#02x: %d of %d messages completed", e.Op, e.Addr, e.Completed, e.Requested)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// Is makes every BusError match ErrBus.
func (e *BusError) Is(target error) bool {
	return target == ErrBus
}

// CheckTransfer turns the result of a Transport.Transfer call into a
// *BusError whenever fewer than requested messages completed or the
// transport reported an error.
func CheckTransfer(op string, addr uint16, requested, completed int, err error) error {
	if err == nil && completed == requested {
		return nil
	}
	return &BusError{Op: op, Addr: addr, Requested: requested, Completed: completed, Err: err}
}
