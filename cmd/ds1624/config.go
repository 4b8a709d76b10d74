package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/hwmon/cmd/ds1624/console"
	"github.com/mklimuk/hwmon/ds1624"
)

var configCmd = cli.Command{
	Name:  "config",
	Usage: "configuration register and tool configuration",
	Subcommands: cli.Commands{
		&configGetCmd,
		&configSetCmd,
		&configOneShotCmd,
		&configDumpCmd,
	},
}

var configGetCmd = cli.Command{
	Name:  "get",
	Usage: "print the configuration register",
	Action: func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		defer s.Close()
		v, err := s.dev.GetConfig(context.Background())
		if err != nil {
			return console.Exit(1, "could not read config: %s", console.Red(err))
		}
		console.Printf("%s\n", v)
		return nil
	},
}

var configSetCmd = cli.Command{
	Name:      "set",
	Usage:     "write the configuration register",
	ArgsUsage: "<hex>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		value := c.Args().First()
		// fail before touching the bus or asking anything
		v, err := ds1624.ParseConfig(value)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("write " + ds1624.FormatConfig(v) + " to the configuration register?")
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if answer != console.Yes {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		defer s.Close()
		if err := s.dev.SetConfig(context.Background(), value); err != nil {
			return console.Exit(1, "could not write config: %s", console.Red(err))
		}
		console.PInfof(console.PictoGear, "config set to %s", console.Green(ds1624.FormatConfig(v)))
		return nil
	},
}

var configOneShotCmd = cli.Command{
	Name:      "oneshot",
	Usage:     "switch one-shot mode on or off keeping the other bits",
	ArgsUsage: "<on|off>",
	Action: func(c *cli.Context) error {
		var bits byte
		switch c.Args().First() {
		case "on":
			bits = ds1624.ConfigOneShot
		case "off":
		default:
			return console.Exit(1, "expected on or off, got %q", c.Args().First())
		}
		s, err := openSession(c)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		defer s.Close()
		v, err := s.dev.UpdateConfig(context.Background(), ds1624.ConfigOneShot, bits)
		if err != nil {
			return console.Exit(1, "could not update config: %s", console.Red(err))
		}
		console.PInfof(console.PictoGear, "config is %s", console.Green(ds1624.FormatConfig(v)))
		return nil
	},
}

var configDumpCmd = cli.Command{
	Name:  "dump",
	Usage: "print the effective tool configuration as YAML",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		b, err := cfg.Marshal()
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		_, _ = os.Stdout.Write(b)
		return nil
	},
}
