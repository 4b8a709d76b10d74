package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/hwmon/cmd/ds1624/console"
)

var temperatureCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "run one conversion and print the temperature",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "raw", Usage: "print millidegrees only"},
		&cli.BoolFlag{Name: "stop", Usage: "stop conversion afterwards"},
	},
	Action: func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		defer s.Close()
		ctx := context.Background()
		mc, err := s.dev.ReadTemperature(ctx)
		if err != nil {
			return console.Exit(1, "error getting temperature read: %s", console.Red(err))
		}
		if c.Bool("raw") {
			console.Printf("%d\n", mc)
		} else {
			console.PInfof(console.PictoThermometer, "%s", console.White(fmt.Sprintf("%.3f°C", float64(mc)/1000)))
		}
		if c.Bool("stop") {
			if err := s.dev.StopConversion(ctx); err != nil {
				return console.Exit(1, "could not stop conversion: %s", console.Red(err))
			}
		}
		return nil
	},
}
