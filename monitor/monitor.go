// Package monitor samples a temperature sensor periodically and hands the
// readings to outputs. A consumer may request an immediate sample through
// Trigger; repeated bus failures mark the device as absent.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/hwmon"
)

var ErrDeviceAbsent = errors.New("device absent")

// Reader is implemented by sensors returning millidegrees Celsius.
type Reader interface {
	ReadTemperature(ctx context.Context) (int, error)
}

type Reading struct {
	Sensor       string    `json:"sensor"`
	Millidegrees int       `json:"millidegrees"`
	Celsius      float64   `json:"celsius"`
	Timestamp    time.Time `json:"timestamp"`
}

// Output receives readings.
type Output interface {
	Publish(ctx context.Context, r Reading) error
	Close() error
}

type Opts struct {
	Name        string
	Interval    time.Duration
	MaxFailures int
	Outputs     []Output
	Logger      *slog.Logger
}

type Opt func(*Opts)

func WithName(name string) Opt {
	return func(o *Opts) {
		o.Name = name
	}
}

func WithInterval(interval time.Duration) Opt {
	return func(o *Opts) {
		o.Interval = interval
	}
}

// WithMaxFailures sets how many consecutive bus errors mark the device as
// absent. Zero disables the check.
func WithMaxFailures(n int) Opt {
	return func(o *Opts) {
		o.MaxFailures = n
	}
}

func WithOutputs(outputs ...Output) Opt {
	return func(o *Opts) {
		o.Outputs = append(o.Outputs, outputs...)
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = logger
	}
}

type Monitor struct {
	reader  Reader
	config  Opts
	logger  *slog.Logger
	trigger chan struct{}
	reset   chan time.Duration

	mx       sync.Mutex
	interval time.Duration
	failures int
	last     Reading
}

func New(reader Reader, opts ...Opt) *Monitor {
	config := Opts{
		Name:        "ds1624",
		Interval:    10 * time.Second,
		MaxFailures: 5,
	}
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		reader:   reader,
		config:   config,
		logger:   logger.With("sensor", config.Name),
		trigger:  make(chan struct{}, 1),
		reset:    make(chan time.Duration, 1),
		interval: config.Interval,
	}
}

// Trigger requests an immediate sample. It never blocks; false means a
// request is already pending.
func (m *Monitor) Trigger() bool {
	select {
	case m.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// SetInterval changes the sampling period of a running monitor.
func (m *Monitor) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.mx.Lock()
	m.interval = interval
	m.mx.Unlock()
	select {
	case <-m.reset:
	default:
	}
	m.reset <- interval
}

func (m *Monitor) Interval() time.Duration {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.interval
}

// Last returns the most recent successful reading.
func (m *Monitor) Last() (Reading, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.last, !m.last.Timestamp.IsZero()
}

// Sample reads the sensor once and publishes the result.
func (m *Monitor) Sample(ctx context.Context) (Reading, error) {
	mc, err := m.reader.ReadTemperature(ctx)
	if err != nil {
		return Reading{}, m.fail(err)
	}
	r := Reading{
		Sensor:       m.config.Name,
		Millidegrees: mc,
		Celsius:      float64(mc) / 1000,
		Timestamp:    time.Now(),
	}
	m.mx.Lock()
	m.failures = 0
	m.last = r
	m.mx.Unlock()
	for _, out := range m.config.Outputs {
		if err := out.Publish(ctx, r); err != nil {
			m.logger.Error("publish failed", "error", err)
		}
	}
	return r, nil
}

func (m *Monitor) fail(err error) error {
	if !errors.Is(err, hwmon.ErrBus) {
		return err
	}
	m.mx.Lock()
	m.failures++
	failures := m.failures
	m.mx.Unlock()
	m.logger.Warn("temperature read failed", "error", err, "consecutive", failures)
	if m.config.MaxFailures > 0 && failures >= m.config.MaxFailures {
		return fmt.Errorf("%s: %d consecutive bus errors: %w", m.config.Name, failures, errors.Join(ErrDeviceAbsent, err))
	}
	return err
}

// Run samples until ctx is done or the device is considered absent. It
// closes the outputs before returning.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.closeOutputs()
	ticker := time.NewTicker(m.Interval())
	defer ticker.Stop()
	m.logger.Info("monitor started", "interval", m.Interval())
	sample := true
	for {
		if sample {
			if _, err := m.Sample(ctx); err != nil {
				if errors.Is(err, ErrDeviceAbsent) {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
			}
		}
		sample = true
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-m.trigger:
			m.logger.Debug("sample triggered")
		case interval := <-m.reset:
			ticker.Reset(interval)
			sample = false
			m.logger.Info("interval changed", "interval", interval)
		}
	}
}

func (m *Monitor) closeOutputs() {
	for _, out := range m.config.Outputs {
		if err := out.Close(); err != nil {
			m.logger.Error("could not close output", "error", err)
		}
	}
}
