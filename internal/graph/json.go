package graph

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes the node as {"id": ..., "attachments": {input: [...]}}.
// Inputs keep their attachment order, which a plain map could not guarantee.
// Leaves omit "attachments"; a cycle repeat is written as {"id": ..., "cycle": true}.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNodeJSON(&buf, n, map[*Node]bool{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNodeJSON(buf *bytes.Buffer, n *Node, path map[*Node]bool) error {
	id, err := json.Marshal(n.ID())
	if err != nil {
		return err
	}
	buf.WriteString(`{"id":`)
	buf.Write(id)
	if path[n] {
		buf.WriteString(`,"cycle":true}`)
		return nil
	}
	if n.attachments.Len() == 0 {
		buf.WriteByte('}')
		return nil
	}
	path[n] = true
	defer delete(path, n)

	buf.WriteString(`,"attachments":{`)
	for i, input := range n.attachments.inputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(input)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteString(":[")
		for j, child := range n.attachments.nodes[input] {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeNodeJSON(buf, child, path); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteString("}}")
	return nil
}
