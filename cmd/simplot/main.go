package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"
	"gonum.org/v1/plot/vg"

	"github.com/signalsfoundry/spacecraft-simulator/internal/plotting"
)

func main() {
	if err := makeapp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeapp(stdout io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "simplot"
	app.Usage = "render spacecraft simulator telemetry logs"
	app.Writer = stdout
	app.Commands = []cli.Command{
		{
			Name:      "columns",
			Usage:     "List the columns of a telemetry log",
			ArgsUsage: "<log.csv>",
			Action: func(c *cli.Context) error {
				l, err := readLog(c)
				if err != nil {
					return err
				}
				for _, col := range l.Columns {
					fmt.Fprintln(c.App.Writer, col)
				}
				return nil
			},
		},
		{
			Name:      "render",
			Usage:     "Plot matching columns against elapsed time",
			ArgsUsage: "<log.csv>",
			Flags: []cli.Flag{
				cli.StringSliceFlag{Name: "column, c", Usage: "Column pattern, unit suffix excluded (repeatable, shell glob)"},
				cli.StringFlag{Name: "out, o", Value: "", Usage: "Output file; the extension selects png, svg or pdf"},
				cli.StringFlag{Name: "title", Value: "", Usage: "Figure title"},
				cli.Float64Flag{Name: "width", Value: 8, Usage: "Figure width in inches"},
				cli.Float64Flag{Name: "height", Value: 4, Usage: "Figure height in inches"},
			},
			Action: func(c *cli.Context) error {
				l, err := readLog(c)
				if err != nil {
					return err
				}
				patterns := c.StringSlice("column")
				if len(patterns) == 0 {
					return cli.NewExitError("at least one --column is required", 2)
				}
				cols := l.Match(patterns...)

				out := c.String("out")
				if out == "" {
					base := filepath.Base(c.Args().First())
					out = strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
				}
				format := strings.TrimPrefix(filepath.Ext(out), ".")

				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				err = l.Render(f, cols, plotting.Options{
					Title:  c.String("title"),
					Width:  vg.Length(c.Float64("width")) * vg.Inch,
					Height: vg.Length(c.Float64("height")) * vg.Inch,
					Format: format,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "wrote %d columns to %s\n", len(cols), out)
				return nil
			},
		},
	}
	return app
}

func readLog(c *cli.Context) (*plotting.Log, error) {
	path := c.Args().First()
	if path == "" {
		return nil, cli.NewExitError("missing telemetry log argument", 2)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return plotting.ReadLog(f)
}
