// Package dot renders a tracker snapshot as a Graphviz digraph. Each unit
// is a node labelled with its id, desired state and actual state; each
// dependency is an edge from the dependent unit to the unit it depends on.
package dot

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/google/renameio/v2"

	"github.com/tailored-agentic-units/supervisor/tracker"
)

// Render returns the DOT source for state.
func Render(state tracker.SystemState) string {
	var buf bytes.Buffer
	write(&buf, state)
	return buf.String()
}

func Write(w io.Writer, state tracker.SystemState) error {
	var buf bytes.Buffer
	write(&buf, state)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile replaces path atomically with the DOT source for state.
func WriteFile(path string, state tracker.SystemState) error {
	if err := renameio.WriteFile(path, []byte(Render(state)), 0o644); err != nil {
		return fmt.Errorf("write dot file %s: %w", path, err)
	}
	return nil
}

func write(buf *bytes.Buffer, state tracker.SystemState) {
	units := state.Units()

	buf.WriteString("digraph units {\n")
	buf.WriteString("  node [shape=box];\n")
	for _, v := range units {
		label := fmt.Sprintf("%s\n%s\n%s", v.ID, v.DesiredState(), v.ActualState())
		fmt.Fprintf(buf, "  %s [label=%s];\n", strconv.Quote(v.ID), strconv.Quote(label))
	}
	for _, v := range units {
		for _, dep := range v.Dependencies {
			fmt.Fprintf(buf, "  %s -> %s;\n", strconv.Quote(v.ID), strconv.Quote(dep))
		}
	}
	buf.WriteString("}\n")
}
