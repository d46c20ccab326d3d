package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotRenderable marks a render whose top level did not survive pruning
// as a mapping. A notification payload must always be a structured object.
var ErrNotRenderable = errors.New("template did not render to an object")

var (
	// {{#if FIELD}}...{{/if}}: the inner text is kept verbatim iff the
	// field is truthy (non-empty). Nested blocks are not supported.
	reIfBlock = regexp.MustCompile(`(?s)\{\{#if\s+([A-Za-z0-9_]+)\s*\}\}(.*?)\{\{/if\}\}`)

	// {{FIELD}}: substituted with the context value, or "" when absent.
	rePlaceholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)
)

// Render walks the tree and returns (rendered, true), or (_, false) when the
// node pruned away entirely:
//
//   - sequences drop undefined children and prune when empty
//   - mappings drop undefined values and prune when empty
//   - strings expand {{#if}} blocks, substitute placeholders, and prune
//     when the final string is empty
//   - raw leaves pass through unchanged
func Render(n Node, ctx map[string]string) (Node, bool) {
	switch n.kind {
	case KindSequence:
		out := make([]Node, 0, len(n.seq))
		for _, child := range n.seq {
			if r, ok := Render(child, ctx); ok {
				out = append(out, r)
			}
		}
		if len(out) == 0 {
			return Node{}, false
		}
		return Sequence(out...), true

	case KindMapping:
		out := make(map[string]Node, len(n.mapping))
		for k, child := range n.mapping {
			if r, ok := Render(child, ctx); ok {
				out[k] = r
			}
		}
		if len(out) == 0 {
			return Node{}, false
		}
		return Mapping(out), true

	case KindString:
		s := renderString(n.str, ctx)
		if s == "" {
			return Node{}, false
		}
		return String(s), true

	default:
		return n, true
	}
}

func renderString(s string, ctx map[string]string) string {
	// Pass 1: conditional blocks.
	s = reIfBlock.ReplaceAllStringFunc(s, func(block string) string {
		m := reIfBlock.FindStringSubmatch(block)
		if ctx[m[1]] != "" {
			return m[2]
		}
		return ""
	})
	// Pass 2: placeholders.
	return rePlaceholder.ReplaceAllStringFunc(s, func(ph string) string {
		m := rePlaceholder.FindStringSubmatch(ph)
		return ctx[m[1]]
	})
}

// RenderPayload renders the tree and marshals it, requiring the result to
// be a mapping. A template that collapsed to nothing is a render failure,
// not an empty notification.
func RenderPayload(n Node, ctx map[string]string) (json.RawMessage, error) {
	r, ok := Render(n, ctx)
	if !ok || r.kind != KindMapping {
		return nil, ErrNotRenderable
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return b, nil
}
