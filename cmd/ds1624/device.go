package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/hwmon"
	"github.com/mklimuk/hwmon/adapter"
	"github.com/mklimuk/hwmon/config"
	"github.com/mklimuk/hwmon/ds1624"
	"github.com/mklimuk/hwmon/ds1624/ds1624test"
	"github.com/mklimuk/hwmon/i2c"
	"github.com/mklimuk/hwmon/smbus"
)

var deviceFlags = []cli.Flag{
	&cli.BoolFlag{Name: "verbose", Usage: "enable verbose logging"},
	&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
	&cli.StringFlag{Name: "adapter", Aliases: []string{"a"}, Usage: "bus adapter: periph, gobot, mcp2221 or sim"},
	&cli.StringFlag{Name: "bus", Aliases: []string{"b"}, Usage: "bus name (periph) or number (gobot)"},
	&cli.StringFlag{Name: "address", Usage: "sensor address, e.g. 0x48"},
	&cli.DurationFlag{Name: "settling", Usage: "conversion settling time"},
	&cli.IntFlag{Name: "sim-temperature", Value: 21500, Usage: "temperature of the simulated sensor in millidegrees"},
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
	}
	if c.IsSet("bus") {
		cfg.Bus = c.String("bus")
	}
	if c.IsSet("address") {
		addr, err := strconv.ParseUint(c.String("address"), 0, 16)
		if err != nil {
			return cfg, fmt.Errorf("invalid address %q: %w", c.String("address"), hwmon.ErrInvalidInput)
		}
		cfg.Address = uint16(addr)
	}
	if c.IsSet("settling") {
		cfg.SettlingTime = c.Duration("settling")
	}
	return cfg, cfg.Validate()
}

type session struct {
	dev     *ds1624.Dev
	cfg     config.Config
	closers []func() error
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}
	transport, err := s.transport(c)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.dev = ds1624.New(transport,
		ds1624.WithAddress(cfg.Address),
		ds1624.WithSettlingTime(cfg.SettlingTime),
	)
	slog.Debug("device ready", "adapter", cfg.Adapter, "device", s.dev.String())
	return s, nil
}

func (s *session) transport(c *cli.Context) (hwmon.Transport, error) {
	switch s.cfg.Adapter {
	case config.AdapterSim:
		sim := ds1624test.New(s.cfg.Address)
		sim.SetTemperature(c.Int("sim-temperature"))
		return sim, nil
	case config.AdapterMCP2221:
		return adapter.NewMCP2221(), nil
	case config.AdapterPeriph:
		bus, err := i2c.Open(s.cfg.Bus)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, bus.Close)
		return bus, nil
	case config.AdapterGobot:
		busNr := -1
		if s.cfg.Bus != "" {
			n, err := strconv.Atoi(s.cfg.Bus)
			if err != nil {
				return nil, fmt.Errorf("gobot bus must be a number, got %q: %w", s.cfg.Bus, hwmon.ErrInvalidInput)
			}
			busNr = n
		}
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		s.closers = append(s.closers, npi.I2cBusAdaptor.Finalize)
		bus, err := smbus.Open(npi, busNr, s.cfg.Address)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, bus.Close)
		return bus, nil
	}
	return nil, fmt.Errorf("unknown adapter %q", s.cfg.Adapter)
}

// Close releases the transport in reverse order of acquisition.
func (s *session) Close() {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("could not release bus", "error", err)
	}
}
