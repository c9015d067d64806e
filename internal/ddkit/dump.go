// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package ddkit

import (
	"fmt"
	"io"
)

// DOT writes a Graphviz description of every node reachable from roots to w,
// adapted from dalzilio/rudd's PrintDot (stdio.go) to this forest's
// handle/level primitives. Terminal nodes render as boxed labels; internal
// nodes as dotted (low) and solid (high) edges to their children, following
// dalzilio/rudd's convention.
func (f *Forest) DOT(w io.Writer, roots ...Edge) error {
	fmt.Fprintln(w, "digraph G {")

	visited := map[int]bool{}
	var walk func(handle int) error
	walk = func(handle int) error {
		if visited[handle] {
			return nil
		}
		visited[handle] = true
		if handle == 0 {
			fmt.Fprintln(w, `0 [shape=box, label="0", style=filled];`)
			return nil
		}
		if handle == 1 {
			fmt.Fprintln(w, `1 [shape=box, label="1", style=filled];`)
			return nil
		}
		if val, ok := f.TerminalValue(handle); ok {
			fmt.Fprintf(w, "%d [shape=box, label=%q, style=filled];\n", handle, fmt.Sprintf("%g", val))
			return nil
		}
		level := f.levelOf(handle)
		fmt.Fprintf(w, "%d [label=\"%d\"];\n", handle, level)
		lo, hi := f.children(handle)
		fmt.Fprintf(w, "%d -> %d [style=dotted];\n", handle, lo)
		fmt.Fprintf(w, "%d -> %d [style=filled];\n", handle, hi)
		if err := walk(lo); err != nil {
			return err
		}
		return walk(hi)
	}

	for _, r := range roots {
		if r.IsZero() {
			continue
		}
		if err := walk(r.Handle()); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}
