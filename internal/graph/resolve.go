package graph

import "github.com/kingrea/apptree/internal/extension"

// Resolve builds the attachment graph for decls rooted at rootID.
//
// decls is read but never modified. The returned graph keeps input order for
// its node index, its orphans and the children of every input slot.
func Resolve(rootID string, decls []extension.Declaration) (*Graph, error) {
	seen := make(map[string]struct{}, len(decls))
	for _, decl := range decls {
		if _, exists := seen[decl.ID]; exists {
			return nil, &DuplicateIDError{ID: decl.ID}
		}
		seen[decl.ID] = struct{}{}
	}

	nodes := make(map[string]*Node, len(decls))
	order := make([]string, 0, len(decls))
	for _, decl := range decls {
		nodes[decl.ID] = newNode(decl)
		order = append(order, decl.ID)
	}

	root, ok := nodes[rootID]
	if !ok {
		return nil, &RootNotFoundError{RootID: rootID}
	}

	for _, id := range order {
		if id == rootID {
			continue
		}
		node := nodes[id]
		target, ok := nodes[node.decl.AttachTo.ID]
		if !ok {
			continue
		}
		target.attachments.add(node.decl.AttachTo.Input, node)
	}

	connected := reachable(root)
	orphan := make(map[string]bool)
	var orphans []*Node
	for _, id := range order {
		if connected[id] {
			continue
		}
		orphan[id] = true
		orphans = append(orphans, nodes[id])
	}

	return &Graph{
		root:    root,
		nodes:   nodes,
		order:   order,
		orphans: orphans,
		orphan:  orphan,
	}, nil
}

// reachable walks attachment edges from root with an explicit worklist.
func reachable(root *Node) map[string]bool {
	visited := map[string]bool{root.ID(): true}
	work := []*Node{root}
	for len(work) > 0 {
		last := len(work) - 1
		node := work[last]
		work = work[:last]
		for _, input := range node.attachments.inputs {
			for _, child := range node.attachments.nodes[input] {
				if visited[child.ID()] {
					continue
				}
				visited[child.ID()] = true
				work = append(work, child)
			}
		}
	}
	return visited
}
