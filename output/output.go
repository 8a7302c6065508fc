// Package output emits step records on stdout so downstream workflow steps
// can consume them: one JSON object per line by default, or a stream of
// YAML documents.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Writer serializes records to a stream. Safe for use from a single sink
// goroutine; the mutex only guards against interleaved Emit calls from
// step teardown paths.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	enc    *json.Encoder
}

func NewWriter(out io.Writer, format string) (*Writer, error) {
	switch format {
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	w := &Writer{out: out, format: format}
	if format == FormatJSON {
		w.enc = json.NewEncoder(out)
	}
	return w, nil
}

// Emit writes one record.
func (w *Writer) Emit(record any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.format {
	case FormatJSON:
		if err := w.enc.Encode(record); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	case FormatYAML:
		data, err := yaml.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode yaml record: %w", err)
		}
		if _, err := fmt.Fprintf(w.out, "---\n%s", data); err != nil {
			return fmt.Errorf("write yaml record: %w", err)
		}
	}
	return nil
}
