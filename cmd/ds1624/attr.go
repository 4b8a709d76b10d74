package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/hwmon/attr"
	"github.com/mklimuk/hwmon/cmd/ds1624/console"
)

var attrCmd = cli.Command{
	Name:  "attr",
	Usage: "access the sensor through its named attributes",
	Subcommands: cli.Commands{
		&attrLsCmd,
		&attrShowCmd,
		&attrStoreCmd,
	},
}

func withGroup(c *cli.Context, fn func(g *attr.Group) error) error {
	s, err := openSession(c)
	if err != nil {
		return console.Exit(1, "device initialization error: %s", console.Red(err))
	}
	defer s.Close()
	g := attr.NewGroup(s.dev.String())
	if err := g.RegisterProvider(s.dev); err != nil {
		return console.Exit(1, "could not register attributes: %s", console.Red(err))
	}
	return fn(g)
}

var attrLsCmd = cli.Command{
	Name: "ls",
	Action: func(c *cli.Context) error {
		return withGroup(c, func(g *attr.Group) error {
			w := tabwriter.NewWriter(os.Stdout, 16, 0, 1, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tMODE\n")
			for _, name := range g.Names() {
				a, _ := g.Get(name)
				mode := "ro"
				if a.Writable() {
					mode = "rw"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\n", name, mode)
			}
			return w.Flush()
		})
	},
}

var attrShowCmd = cli.Command{
	Name:      "show",
	ArgsUsage: "<name>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		return withGroup(c, func(g *attr.Group) error {
			v, err := g.Show(context.Background(), c.Args().First())
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			console.Printf("%s\n", v)
			return nil
		})
	},
}

var attrStoreCmd = cli.Command{
	Name:      "store",
	ArgsUsage: "<name> <value>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		return withGroup(c, func(g *attr.Group) error {
			if err := g.Store(context.Background(), c.Args().Get(0), c.Args().Get(1)); err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			return nil
		})
	},
}
