// Package dtree implements a dotted-path structured dictionary: the shared
// parse/produce workspace used by the automata-driven wire codecs, and the
// generic side channel consumed by the web introspection surface.
//
// Keys look like "enip.CIP.send_data.CPF.item[1].unconnected_send.request.service".
// Intermediate containers are created on write (autovivification); a
// bracketed integer suffix on a path element addresses a slice, never a
// map key, even when the element name before it looks numeric.
package dtree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tree is a nested map/slice structure addressed by dotted paths.
type Tree struct {
	root  map[string]any
	dirty map[string]bool
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: make(map[string]any), dirty: make(map[string]bool)}
}

type segment struct {
	name  string
	index int // -1 if this segment has no array index
}

func parsePath(path string) ([]segment, error) {
	if path == "" {
		return nil, fmt.Errorf("dtree: empty path")
	}
	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		name := p
		index := -1
		if i := strings.IndexByte(p, '['); i >= 0 {
			if !strings.HasSuffix(p, "]") {
				return nil, fmt.Errorf("dtree: malformed path element %q", p)
			}
			name = p[:i]
			n, err := strconv.Atoi(p[i+1 : len(p)-1])
			if err != nil {
				return nil, fmt.Errorf("dtree: bad index in %q: %w", p, err)
			}
			index = n
		}
		if name == "" {
			return nil, fmt.Errorf("dtree: empty path element in %q", path)
		}
		segs = append(segs, segment{name: name, index: index})
	}
	return segs, nil
}

// Set autovivifies intermediate containers and stores value at path.
func (t *Tree) Set(path string, value any) error {
	segs, err := parsePath(path)
	if err != nil {
		return err
	}
	cur := t.root
	for i, s := range segs {
		last := i == len(segs)-1
		if s.index < 0 {
			if last {
				cur[s.name] = value
				break
			}
			next, ok := cur[s.name].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[s.name] = next
			}
			cur = next
			continue
		}
		slice, _ := cur[s.name].([]any)
		for len(slice) <= s.index {
			slice = append(slice, nil)
		}
		if last {
			slice[s.index] = value
			cur[s.name] = slice
			break
		}
		next, ok := slice[s.index].(map[string]any)
		if !ok {
			next = make(map[string]any)
			slice[s.index] = next
		}
		cur[s.name] = slice
		cur = next
	}
	t.dirty[path] = true
	return nil
}

// SetDefault stores value at path only if nothing is already there, and
// returns the (possibly pre-existing) value.
func (t *Tree) SetDefault(path string, value any) (any, error) {
	if v, ok := t.Get(path); ok {
		return v, nil
	}
	if err := t.Set(path, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Get looks up path, returning ok=false if any segment is absent.
func (t *Tree) Get(path string) (any, bool) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	var cur any = t.root
	for _, s := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[s.name]
		if !ok {
			return nil, false
		}
		if s.index < 0 {
			cur = v
			continue
		}
		slice, ok := v.([]any)
		if !ok || s.index >= len(slice) {
			return nil, false
		}
		cur = slice[s.index]
	}
	return cur, true
}

// Join concatenates a context prefix and a suffix with a dot, skipping the
// dot when either side is empty. Parsers build up their context path this
// way as they descend into sub-grammars rather than allocating a scoped
// view of the tree.
func Join(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	if suffix == "" {
		return prefix
	}
	return prefix + "." + suffix
}

// Update bulk-merges a flat map of path -> value.
func (t *Tree) Update(values map[string]any) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := t.Set(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Changed reports whether path (or any path, if empty) was written to
// since the tree was created or Reset was last called — used by servers to
// detect which fields a request handler actually touched.
func (t *Tree) Changed(path string) bool {
	if path == "" {
		return len(t.dirty) > 0
	}
	return t.dirty[path]
}

// Reset clears the change-tracking set without discarding stored values.
func (t *Tree) Reset() {
	t.dirty = make(map[string]bool)
}

// Dump pretty-prints the tree for debug logs.
func (t *Tree) Dump() string {
	var b strings.Builder
	dump(&b, t.root, "")
	return b.String()
}

func dump(b *strings.Builder, v any, prefix string) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := Join(prefix, k)
			dump(b, x[k], p)
		}
	case []any:
		for i, e := range x {
			dump(b, e, fmt.Sprintf("%s[%d]", prefix, i))
		}
	default:
		fmt.Fprintf(b, "%s = %v\n", prefix, x)
	}
}
