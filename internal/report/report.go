// Package report writes a resolved graph in the formats the CLI offers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/apptree/internal/graph"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats in help order.
var Formats = []Format{FormatText, FormatJSON, FormatYAML}

// ParseFormat accepts a format name case-insensitively. "yml" is an alias for yaml.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("report: unknown format %q (want text, json or yaml)", name)
}

// Write encodes g to w.
//
// The text form is the rendered root followed by an "orphans:" section.
// JSON and YAML carry the root tree, the orphan trees and every node id in
// declaration order.
func Write(w io.Writer, g *graph.Graph, format Format) error {
	if g == nil {
		return fmt.Errorf("report: nil graph")
	}
	switch format {
	case FormatText, "":
		return writeText(w, g)
	case FormatJSON:
		return writeJSON(w, g)
	case FormatYAML:
		return writeYAML(w, g)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

// WriteOrphans writes only the orphan section in the given format.
func WriteOrphans(w io.Writer, g *graph.Graph, format Format) error {
	if g == nil {
		return fmt.Errorf("report: nil graph")
	}
	orphans := g.Orphans()
	switch format {
	case FormatText, "":
		for _, n := range orphans {
			if _, err := fmt.Fprintln(w, graph.Render(n)); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		if orphans == nil {
			orphans = []*graph.Node{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(orphans)
	case FormatYAML:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, n := range orphans {
			seq.Content = append(seq.Content, nodeYAML(n, map[*graph.Node]bool{}))
		}
		return encodeYAML(w, seq)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

func writeText(w io.Writer, g *graph.Graph) error {
	var b strings.Builder
	b.WriteString(graph.Render(g.Root()))
	b.WriteByte('\n')
	if orphans := g.Orphans(); len(orphans) > 0 {
		b.WriteString("\norphans:\n")
		for _, n := range orphans {
			b.WriteString(graph.Render(n))
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonReport struct {
	Root    *graph.Node   `json:"root"`
	Orphans []*graph.Node `json:"orphans"`
	Nodes   []string      `json:"nodes"`
}

func writeJSON(w io.Writer, g *graph.Graph) error {
	out := jsonReport{Root: g.Root(), Orphans: g.Orphans(), Nodes: g.IDs()}
	if out.Orphans == nil {
		out.Orphans = []*graph.Node{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeYAML(w io.Writer, g *graph.Graph) error {
	orphans := &yaml.Node{Kind: yaml.SequenceNode}
	for _, n := range g.Orphans() {
		orphans.Content = append(orphans.Content, nodeYAML(n, map[*graph.Node]bool{}))
	}
	ids := &yaml.Node{Kind: yaml.SequenceNode}
	for _, id := range g.IDs() {
		ids.Content = append(ids.Content, scalar(id))
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		scalar("root"), nodeYAML(g.Root(), map[*graph.Node]bool{}),
		scalar("orphans"), orphans,
		scalar("nodes"), ids,
	}}
	return encodeYAML(w, doc)
}

// nodeYAML builds a mapping node so input slots keep their attachment order.
func nodeYAML(n *graph.Node, path map[*graph.Node]bool) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{scalar("id"), scalar(n.ID())}}
	if path[n] {
		m.Content = append(m.Content, scalar("cycle"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
		return m
	}
	att := n.Attachments()
	if att.Len() == 0 {
		return m
	}
	path[n] = true
	defer delete(path, n)

	slots := &yaml.Node{Kind: yaml.MappingNode}
	for _, input := range att.Inputs() {
		children := &yaml.Node{Kind: yaml.SequenceNode}
		for _, child := range att.Get(input) {
			children.Content = append(children.Content, nodeYAML(child, path))
		}
		slots.Content = append(slots.Content, scalar(input), children)
	}
	m.Content = append(m.Content, scalar("attachments"), slots)
	return m
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func encodeYAML(w io.Writer, node *yaml.Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	return enc.Close()
}
