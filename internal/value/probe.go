package value

import "strconv"

// Leaf is one scalar discovered by the probe, together with the dotted
// path that reaches it.
type Leaf struct {
	Path  string
	Value Value
}

// Walk performs a depth-first traversal of root, preserving mapping
// insertion order and sequence index order, and invokes visit for every
// scalar leaf whose path matches selector. An empty selector matches
// every leaf. The walk never mutates root. visit returning false stops
// the traversal early (the "lazy sequence" contract: callers that only
// need the first match never pay for the rest of the tree).
func Walk(root Value, selector string, visit func(Leaf) bool) {
	sel := splitSelector(selector)
	walk(root, "", sel, visit)
}

// Collect is the eager counterpart of Walk, returning every matching
// leaf in traversal order.
func Collect(root Value, selector string) []Leaf {
	var out []Leaf
	Walk(root, selector, func(l Leaf) bool {
		out = append(out, l)
		return true
	})
	return out
}

// First returns the first leaf matching selector, if any.
func First(root Value, selector string) (Leaf, bool) {
	var found Leaf
	ok := false
	Walk(root, selector, func(l Leaf) bool {
		found, ok = l, true
		return false
	})
	return found, ok
}

func walk(v Value, path string, sel []string, visit func(Leaf) bool) bool {
	if v.IsScalar() {
		if selectorMatches(sel, path) {
			if !visit(Leaf{Path: path, Value: v}) {
				return false
			}
		}
		return true
	}
	switch v.kind {
	case KindMap:
		for _, e := range v.entries {
			childPath := e.Key
			if path != "" {
				childPath = path + "." + e.Key
			}
			if !walk(e.Value, childPath, sel, visit) {
				return false
			}
		}
	case KindSeq:
		for i, it := range v.items {
			childPath := path + "[" + strconv.Itoa(i) + "]"
			if !walk(it, childPath, sel, visit) {
				return false
			}
		}
	}
	return true
}

// splitSelector breaks a dotted selector into its segment keys, treating
// "[i]" suffixes as part of the preceding key segment (matching happens
// against the key portion only; a selector never pins a specific index).
func splitSelector(selector string) []string {
	if selector == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i < len(selector); i++ {
		if selector[i] == '.' {
			segs = append(segs, selector[start:i])
			start = i + 1
		}
	}
	segs = append(segs, selector[start:])
	return segs
}

// selectorMatches reports whether a leaf path satisfies the (possibly
// empty) selector. Matching is segment-by-segment against the mapping
// key portion of each path segment, ignoring any trailing "[i]" index;
// "*" matches any single segment. A nil selector matches everything.
func selectorMatches(sel []string, path string) bool {
	if sel == nil {
		return true
	}
	pathSegs := segmentKeys(path)
	if len(pathSegs) < len(sel) {
		return false
	}
	// The selector anchors at the leaf's trailing segments: "body.subject"
	// should match a leaf at path "body.subject" exactly, while "body"
	// alone is a prefix selector one level before a leaf reached directly
	// via a single key. We require an exact-length match against the
	// path's own key segments, which is what dotted field paths in rule
	// params describe (they name a field, not merely a prefix).
	if len(pathSegs) != len(sel) {
		return false
	}
	for i, s := range sel {
		if s == "*" {
			continue
		}
		if s != pathSegs[i] {
			return false
		}
	}
	return true
}

// segmentKeys returns the key portion of every dotted segment in path,
// dropping sequence-index brackets (["items[0]", "name"] -> ["items", "name"]).
func segmentKeys(path string) []string {
	var segs []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, keyPart(path[start:i]))
			start = i + 1
		}
	}
	segs = append(segs, keyPart(path[start:]))
	return segs
}

func keyPart(seg string) string {
	for i := 0; i < len(seg); i++ {
		if seg[i] == '[' {
			return seg[:i]
		}
	}
	return seg
}
