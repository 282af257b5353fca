package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/typster/internal/source"
)

// lineWriter prints streamed lines in one output format.
type lineWriter interface {
	Write(line source.Line) error
	Close() error
}

func newLineWriter(out io.Writer, format string) (lineWriter, error) {
	switch format {
	case FormatText:
		return &textWriter{out: out}, nil
	case FormatJSON:
		return &jsonWriter{enc: json.NewEncoder(out)}, nil
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		return &yamlWriter{enc: enc}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type textWriter struct {
	out io.Writer
}

func (w *textWriter) Write(line source.Line) error {
	_, err := fmt.Fprintln(w.out, line.String())
	return err
}

func (w *textWriter) Close() error { return nil }

// jsonWriter emits one JSON object per line.
type jsonWriter struct {
	enc *json.Encoder
}

func (w *jsonWriter) Write(line source.Line) error {
	return w.enc.Encode(line)
}

func (w *jsonWriter) Close() error { return nil }

// yamlWriter emits one YAML document per line.
type yamlWriter struct {
	enc *yaml.Encoder
}

func (w *yamlWriter) Write(line source.Line) error {
	return w.enc.Encode(line)
}

func (w *yamlWriter) Close() error {
	return w.enc.Close()
}
