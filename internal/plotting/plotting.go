// Package plotting renders columns of a telemetry CSV log with gonum/plot.
package plotting

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const timeColumn = "elapsed_time[s]"

// ErrNoColumns is returned when a selection matches nothing in the log.
var ErrNoColumns = errors.New("plotting: no matching columns")

// Log is a parsed telemetry log. A log may contain several header rows
// when spacecraft joined or left mid-run; each column keeps the samples
// taken while it was present.
type Log struct {
	Columns []string // first-appearance order, time column excluded
	Series  map[string]plotter.XYs
}

// ReadLog parses a telemetry CSV log.
func ReadLog(r io.Reader) (*Log, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	l := &Log{Series: make(map[string]plotter.XYs)}
	var header []string
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("plotting: line %d: %w", line, err)
		}
		if len(rec) > 0 && rec[len(rec)-1] == "" {
			rec = rec[:len(rec)-1]
		}
		if len(rec) == 0 {
			continue
		}
		if rec[0] == timeColumn {
			header = rec
			for _, name := range rec[1:] {
				if _, seen := l.Series[name]; !seen {
					l.Columns = append(l.Columns, name)
					l.Series[name] = nil
				}
			}
			continue
		}
		if header == nil {
			return nil, fmt.Errorf("plotting: line %d: values before header", line)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("plotting: line %d: %d values for %d columns", line, len(rec), len(header))
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("plotting: line %d: time: %w", line, err)
		}
		for i, name := range header[1:] {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("plotting: line %d: column %s: %w", line, name, err)
			}
			l.Series[name] = append(l.Series[name], plotter.XY{X: t, Y: v})
		}
	}
	if header == nil {
		return nil, fmt.Errorf("plotting: log has no header")
	}
	return l, nil
}

// Match returns the columns whose name, with the unit suffix stripped,
// matches any of the shell patterns, in log order.
func (l *Log) Match(patterns ...string) []string {
	var out []string
	for _, c := range l.Columns {
		name := c
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		for _, p := range patterns {
			if ok, _ := path.Match(p, name); ok {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Options control the rendered figure.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	Format string // png, svg, pdf
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 4 * vg.Inch
	}
	if o.Format == "" {
		o.Format = "png"
	}
	return o
}

// Plot builds a line plot of columns against elapsed time.
func (l *Log) Plot(columns []string, title string) (*plot.Plot, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = timeColumn
	p.Legend.Top = true

	for i, c := range columns {
		xys, ok := l.Series[c]
		if !ok {
			return nil, fmt.Errorf("plotting: unknown column %q: %w", c, ErrNoColumns)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("plotting: column %s: %w", c, err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / 7)
		p.Add(line)
		p.Legend.Add(c, line)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// Render writes a figure of columns to w.
func (l *Log) Render(w io.Writer, columns []string, opts Options) error {
	opts = opts.withDefaults()
	p, err := l.Plot(columns, opts.Title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, opts.Format)
	if err != nil {
		return fmt.Errorf("plotting: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("plotting: write: %w", err)
	}
	return nil
}
