package graph

import "strings"

const indentUnit = "  "

// Render returns the indented tag form of n and everything attached below it.
// Leaves render as <id />. A node that reappears below itself, which can only
// happen inside an orphan cycle, renders as <id (cycle) /> at the repeat.
func Render(n *Node) string {
	if n == nil {
		return ""
	}
	var lines []string
	renderInto(&lines, n, "", map[*Node]bool{})
	return strings.Join(lines, "\n")
}

// String implements fmt.Stringer using Render.
func (n *Node) String() string {
	return Render(n)
}

func renderInto(lines *[]string, n *Node, prefix string, path map[*Node]bool) {
	id := n.ID()
	if path[n] {
		*lines = append(*lines, prefix+"<"+id+" (cycle) />")
		return
	}
	if n.attachments.Len() == 0 {
		*lines = append(*lines, prefix+"<"+id+" />")
		return
	}
	path[n] = true
	defer delete(path, n)

	*lines = append(*lines, prefix+"<"+id+">")
	slotPrefix := prefix + indentUnit
	childPrefix := slotPrefix + indentUnit
	for _, input := range n.attachments.inputs {
		*lines = append(*lines, slotPrefix+input+" [")
		for _, child := range n.attachments.nodes[input] {
			renderInto(lines, child, childPrefix, path)
		}
		*lines = append(*lines, slotPrefix+"]")
	}
	*lines = append(*lines, prefix+"</"+id+">")
}
