// Package template renders an arbitrary JSON template tree against a flat
// string context, pruning branches that render empty so optional fields
// disappear instead of showing up as "".
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags a Node. Modeling the duck-typed JSON tree as an explicit
// variant keeps the recursive pruning exhaustive and testable.
type Kind int

const (
	KindString Kind = iota
	KindSequence
	KindMapping
	KindRaw // numbers, booleans, null: passed through unchanged
)

// Node is one vertex of an immutable template tree.
type Node struct {
	kind    Kind
	str     string
	seq     []Node
	mapping map[string]Node
	raw     any
}

func String(s string) Node { return Node{kind: KindString, str: s} }

func Sequence(items ...Node) Node { return Node{kind: KindSequence, seq: items} }

func Mapping(m map[string]Node) Node { return Node{kind: KindMapping, mapping: m} }

func Raw(v any) Node { return Node{kind: KindRaw, raw: v} }

func (n Node) Kind() Kind { return n.kind }

// Parse builds a Node tree from JSON bytes.
func Parse(b []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}, fmt.Errorf("template parse: %w", err)
	}
	return fromValue(v), nil
}

func fromValue(v any) Node {
	switch x := v.(type) {
	case string:
		return String(x)
	case []any:
		seq := make([]Node, 0, len(x))
		for _, item := range x {
			seq = append(seq, fromValue(item))
		}
		return Sequence(seq...)
	case map[string]any:
		m := make(map[string]Node, len(x))
		for k, item := range x {
			m[k] = fromValue(item)
		}
		return Mapping(m)
	default:
		return Raw(x)
	}
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch n.kind {
	case KindString:
		return json.Marshal(n.str)
	case KindSequence:
		if n.seq == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(n.seq)
	case KindMapping:
		if n.mapping == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(n.mapping)
	default:
		return json.Marshal(n.raw)
	}
}
