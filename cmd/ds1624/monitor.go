package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/hwmon/cmd/ds1624/console"
	"github.com/mklimuk/hwmon/config"
	"github.com/mklimuk/hwmon/monitor"
	stdout "github.com/mklimuk/hwmon/output/console"
	"github.com/mklimuk/hwmon/output/mqtt"
)

var monitorCmd = cli.Command{
	Name:  "monitor",
	Usage: "sample the sensor periodically and publish readings",
	Description: "SIGUSR1 requests an immediate sample. When a config file is given, " +
		"changes to the monitor interval are applied without a restart.",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "sampling interval"},
	},
	Action: func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		defer s.Close()
		if c.IsSet("interval") {
			s.cfg.Monitor.Interval = c.Duration("interval")
		}
		outputs, err := buildOutputs(s.cfg.Outputs)
		if err != nil {
			return console.Exit(1, "output initialization error: %s", console.Red(err))
		}
		m := monitor.New(s.dev,
			monitor.WithName(s.cfg.Monitor.Name),
			monitor.WithInterval(s.cfg.Monitor.Interval),
			monitor.WithMaxFailures(s.cfg.Monitor.MaxFailures),
			monitor.WithOutputs(outputs...),
		)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		go triggerOnSignal(ctx, m)
		if path := c.String("config"); path != "" {
			go func() {
				err := config.Watch(ctx, path, func(cfg config.Config) {
					m.SetInterval(cfg.Monitor.Interval)
				})
				if err != nil {
					slog.Error("config watch stopped", "error", err)
				}
			}()
		}

		err = m.Run(ctx)
		if errors.Is(err, monitor.ErrDeviceAbsent) {
			return console.Exit(2, "%s", console.Red(err))
		}
		if err != nil {
			return console.Exit(1, "monitor error: %s", console.Red(err))
		}
		return nil
	},
}

func buildOutputs(cfg config.Outputs) ([]monitor.Output, error) {
	var outputs []monitor.Output
	if cfg.Console {
		outputs = append(outputs, stdout.New(os.Stdout))
	}
	if cfg.MQTT != nil {
		out, err := mqtt.Connect(mqtt.Config{
			Server:         cfg.MQTT.Server,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			StateTopic:     cfg.MQTT.StateTopic,
			DiscoveryTopic: cfg.MQTT.DiscoveryTopic,
			DiscoveryName:  cfg.MQTT.DiscoveryName,
		})
		if err != nil {
			for _, o := range outputs {
				_ = o.Close()
			}
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func triggerOnSignal(ctx context.Context, m *monitor.Monitor) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if !m.Trigger() {
				slog.Debug("sample already pending")
			}
		}
	}
}
