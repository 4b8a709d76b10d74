package main

import (
	"context"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/hwmon/adapter"
	"github.com/mklimuk/hwmon/cmd/ds1624/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 USB bridge maintenance",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "index", Usage: "index of the bridge when several are attached"},
	},
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221SpeedCmd,
	},
}

func printStatus(status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	if err := enc.Encode(status); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		status, err := a.Status(context.Background())
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printStatus(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck transfer and free the bus",
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		status, err := a.ReleaseBus(context.Background())
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printStatus(status)
	},
}

var mcp2221SpeedCmd = cli.Command{
	Name:      "speed",
	ArgsUsage: "<hz>",
	Action: func(c *cli.Context) error {
		hz := 100_000
		if c.NArg() > 0 {
			var err error
			if hz, err = parseInt(c.Args().First()); err != nil {
				return console.Exit(1, "invalid speed: %s", console.Red(err))
			}
		}
		a := adapter.NewMCP2221(adapter.WithDeviceIndex(c.Int("index")))
		if err := a.SetSpeed(context.Background(), hz); err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		console.Infof("i2c speed set to %d Hz", hz)
		return nil
	},
}

func parseInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 0, 0)
	return int(v), err
}
