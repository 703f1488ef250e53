package project

import (
	"fmt"

	"github.com/kingrea/apptree/internal/graph"
)

// Summary holds headline counts for a resolved graph.
//
// Attached counts the nodes in the root tree, root included. Slots counts
// the distinct input slots with at least one child, across all nodes.
type Summary struct {
	Nodes    int
	Attached int
	Orphans  int
	Disabled int
	Slots    int
}

// Summarize counts the nodes of g.
func Summarize(g *graph.Graph) Summary {
	var s Summary
	if g == nil {
		return s
	}
	s.Nodes = g.Len()
	s.Orphans = len(g.Orphans())
	s.Attached = s.Nodes - s.Orphans
	for _, n := range g.Nodes() {
		if n.Declaration().Disabled {
			s.Disabled++
		}
		s.Slots += n.Attachments().Len()
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("nodes=%d attached=%d orphans=%d disabled=%d slots=%d",
		s.Nodes, s.Attached, s.Orphans, s.Disabled, s.Slots)
}
