package pluginscan

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Reporter writes findings to an output
type Reporter interface {
	Report(f Finding) error
}

// LineReporter prints "Plugin found! <plugin>: <version>" lines
type LineReporter struct {
	mu    sync.Mutex
	w     io.Writer
	color *color.Color
}

// NewLineReporter creates a line reporter. The plugin name is printed in
// green when colored is true.
func NewLineReporter(w io.Writer, colored bool) *LineReporter {
	c := color.New(color.FgGreen)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return &LineReporter{w: w, color: c}
}

// Report writes one line for f
func (r *LineReporter) Report(f Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := fmt.Fprintf(r.w, "Plugin found! %s: %s\n", r.color.Sprint(f.Plugin), f.VersionOrUnknown())
	return err
}

// JSONReporter writes one JSON object per finding
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONReporter creates a JSON lines reporter
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

type jsonFinding struct {
	Plugin     string `json:"plugin"`
	Section    string `json:"section,omitempty"`
	SignalType string `json:"signal"`
	Version    string `json:"version"`
}

// Report writes f as a single JSON line; an undetermined version is "unknown"
func (r *JSONReporter) Report(f Finding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.enc.Encode(jsonFinding{
		Plugin:     f.Plugin,
		Section:    f.Section,
		SignalType: f.SignalType,
		Version:    f.VersionOrUnknown(),
	})
}
