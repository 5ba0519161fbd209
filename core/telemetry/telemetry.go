// Package telemetry formats the per-tick CSV log. Loggable objects emit a
// header fragment once and a value fragment at every log tick; the Sink
// concatenates them into rows on an io.Writer supplied by the caller.
package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Loggable emits comma-terminated CSV fragments.
type Loggable interface {
	LogHeader() string
	LogValue() string
}

var axisSuffix = []string{"x", "y", "z"}

// ScalarHeader returns "name[unit],".
func ScalarHeader(name, unit string) string {
	return name + "[" + unit + "],"
}

// VectorHeader returns a header column per axis of a 3-vector.
func VectorHeader(name, unit string) string {
	var b strings.Builder
	for _, s := range axisSuffix {
		b.WriteString(ScalarHeader(name+"_"+s, unit))
	}
	return b.String()
}

// SliceHeader returns n indexed columns.
func SliceHeader(name, unit string, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(ScalarHeader(name+"_"+strconv.Itoa(i), unit))
	}
	return b.String()
}

// QuaternionHeader returns four columns, scalar part first.
func QuaternionHeader(name string) string {
	var b strings.Builder
	for _, s := range []string{"w", "x", "y", "z"} {
		b.WriteString(ScalarHeader(name+"_"+s, "-"))
	}
	return b.String()
}

// ScalarValue formats v as a comma-terminated field.
func ScalarValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64) + ","
}

// VectorValue formats the three components of v.
func VectorValue(v r3.Vec) string {
	return ScalarValue(v.X) + ScalarValue(v.Y) + ScalarValue(v.Z)
}

// SliceValue formats every element of v.
func SliceValue(v []float64) string {
	var b strings.Builder
	for _, x := range v {
		b.WriteString(ScalarValue(x))
	}
	return b.String()
}

// QuaternionValue formats q scalar part first.
func QuaternionValue(q quat.Number) string {
	return ScalarValue(q.Real) + ScalarValue(q.Imag) + ScalarValue(q.Jmag) + ScalarValue(q.Kmag)
}

// BoolValue formats b as 1 or 0.
func BoolValue(b bool) string {
	if b {
		return "1,"
	}
	return "0,"
}

// Sink collects loggables in registration order and writes one row per
// WriteValues call. The first column is the elapsed simulation time.
type Sink struct {
	mu      sync.Mutex
	w       *bufio.Writer
	entries []Loggable
	rows    int
}

// NewSink wraps w. The core never opens files; callers own w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// Add appends l to the column set.
func (s *Sink) Add(l Loggable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, l)
}

// Remove drops l from the column set. It reports whether l was present.
func (s *Sink) Remove(l Loggable) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e == l {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered loggables.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Rows returns the number of value rows written.
func (s *Sink) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// WriteHeader writes the header row.
func (s *Sink) WriteHeader() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.WriteString(ScalarHeader("elapsed_time", "s")); err != nil {
		return fmt.Errorf("telemetry: write header: %w", err)
	}
	for _, e := range s.entries {
		if _, err := s.w.WriteString(e.LogHeader()); err != nil {
			return fmt.Errorf("telemetry: write header: %w", err)
		}
	}
	return s.endLine()
}

// WriteValues writes one value row stamped with elapsedSeconds.
func (s *Sink) WriteValues(elapsedSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.WriteString(ScalarValue(elapsedSeconds)); err != nil {
		return fmt.Errorf("telemetry: write values: %w", err)
	}
	for _, e := range s.entries {
		if _, err := s.w.WriteString(e.LogValue()); err != nil {
			return fmt.Errorf("telemetry: write values: %w", err)
		}
	}
	s.rows++
	return s.endLine()
}

func (s *Sink) endLine() error {
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("telemetry: flush: %w", err)
	}
	return nil
}
