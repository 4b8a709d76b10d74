// Package console prints readings as text lines.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mklimuk/hwmon/monitor"
)

type Output struct {
	mx sync.Mutex
	w  io.Writer
}

// New returns an output writing to w, or to stdout when w is nil.
func New(w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{w: w}
}

func (o *Output) Publish(ctx context.Context, r monitor.Reading) error {
	o.mx.Lock()
	defer o.mx.Unlock()
	_, err := fmt.Fprintf(o.w, "%s sensor=%s millidegrees=%d celsius=%.3f\n", r.Timestamp.Format(time.RFC3339), r.Sensor, r.Millidegrees, r.Celsius)
	return err
}

func (o *Output) Close() error { return nil }

var _ monitor.Output = &Output{}
