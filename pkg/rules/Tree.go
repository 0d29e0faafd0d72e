// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package rules

import (
	"regexp"
)

// NodeID is a handle to a node in a Tree.
type NodeID int

const (
	// NoNode is the parent of the root node.
	NoNode NodeID = -1
	// RootNode is the root of every tree.  Its status is the default status.
	RootNode NodeID = 0
)

type node struct {
	segment  string
	kind     segmentKind
	regex    *regexp.Regexp
	status   Status
	depth    int
	parent   NodeID
	children []NodeID
	live     bool
}

// Rule is a declared node of a tree.
type Rule struct {
	Segments []string
	Status   Status
}

// Tree is a tree of path patterns.  Nodes are stored in a slice owned by the tree,
// children are owned handles and parents are plain handles back into the same slice.
type Tree struct {
	nodes      []node
	free       []NodeID
	substrings int
}

// NewTree returns a tree with only a root node carrying the default status.
func NewTree(defaultStatus Status) *Tree {
	return &Tree{
		nodes: []node{
			{
				status: defaultStatus,
				depth:  0,
				parent: NoNode,
				live:   true,
			},
		},
	}
}

func (t *Tree) alloc(n node) NodeID {
	n.live = true
	if len(t.free) > 0 {
		id := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

func (t *Tree) release(id NodeID) {
	for _, child := range t.nodes[id].children {
		t.release(child)
	}
	if t.nodes[id].kind == substringSegment {
		t.substrings--
	}
	t.nodes[id] = node{parent: NoNode}
	t.free = append(t.free, id)
}

// Len returns the number of nodes in the tree, including the root.
func (t *Tree) Len() int {
	return len(t.nodes) - len(t.free)
}

// Default returns the status of the root node.
func (t *Tree) Default() Status {
	return t.nodes[RootNode].status
}

// SetDefault sets the status of the root node.
func (t *Tree) SetDefault(status Status) {
	t.nodes[RootNode].status = status
}

func (t *Tree) Status(id NodeID) Status {
	return t.nodes[id].status
}

func (t *Tree) Segment(id NodeID) string {
	return t.nodes[id].segment
}

func (t *Tree) Depth(id NodeID) int {
	return t.nodes[id].depth
}

func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].parent
}

// Children returns a copy of the ordered children of the node.
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID{}, t.nodes[id].children...)
}

// HasSubstringSegments returns true if any node matches against the remaining joined path.
func (t *Tree) HasSubstringSegments() bool {
	return t.substrings > 0
}

// SubstringOnRoute returns true if the node or one of its ancestors has a substring child.
// Such a child can match a longer path that extends the route, wherever the route stopped.
func (t *Tree) SubstringOnRoute(id NodeID) bool {
	if t.substrings == 0 {
		return false
	}
	for ; id != NoNode; id = t.nodes[id].parent {
		for _, c := range t.nodes[id].children {
			if t.nodes[c].kind == substringSegment {
				return true
			}
		}
	}
	return false
}

// PathOf returns the declared segments from the root to the node.
func (t *Tree) PathOf(id NodeID) []string {
	segments := []string{}
	for ; id != RootNode && id != NoNode; id = t.nodes[id].parent {
		segments = append([]string{t.nodes[id].segment}, segments...)
	}
	return segments
}

func (t *Tree) child(parent NodeID, segment string) NodeID {
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].segment == segment {
			return c
		}
	}
	return NoNode
}

// Find returns the node declared at exactly the given segments, comparing segment text
// rather than matching patterns.  Returns NoNode if no such node exists.
func (t *Tree) Find(segments []string) NodeID {
	id := RootNode
	for _, segment := range segments {
		id = t.child(id, segment)
		if id == NoNode {
			return NoNode
		}
	}
	return id
}

// CreatePath returns the node at the given segments, creating missing nodes with an undefined status.
func (t *Tree) CreatePath(segments []string) (NodeID, error) {
	// compile everything first so that a bad segment leaves the tree unchanged
	kinds := make([]segmentKind, len(segments))
	regexes := make([]*regexp.Regexp, len(segments))
	for i, segment := range segments {
		if len(segment) == 0 {
			return NoNode, &ConfigurationError{Name: FormatPath(segments), Reason: "empty path segment"}
		}
		kind, re, err := compileSegment(segment)
		if err != nil {
			return NoNode, &ConfigurationError{Name: FormatPath(segments), Reason: "invalid pattern", Err: err}
		}
		kinds[i] = kind
		regexes[i] = re
	}
	id := RootNode
	for i, segment := range segments {
		if c := t.child(id, segment); c != NoNode {
			id = c
			continue
		}
		c := t.alloc(node{
			segment: segment,
			kind:    kinds[i],
			regex:   regexes[i],
			status:  Undefined,
			depth:   t.nodes[id].depth + 1,
			parent:  id,
		})
		if kinds[i] == substringSegment {
			t.substrings++
		}
		t.nodes[id].children = append(t.nodes[id].children, c)
		id = c
	}
	return id, nil
}

// SetStatus declares the status of the node at the given segments, creating it if needed.
func (t *Tree) SetStatus(segments []string, status Status) error {
	id, err := t.CreatePath(segments)
	if err != nil {
		return err
	}
	t.nodes[id].status = status
	return nil
}

// DeletePath removes the node at the given segments together with its whole subtree.
// The root cannot be deleted.
func (t *Tree) DeletePath(segments []string) bool {
	if len(segments) == 0 {
		return false
	}
	id := t.Find(segments)
	if id == NoNode {
		return false
	}
	parent := t.nodes[id].parent
	children := t.nodes[parent].children
	for i, c := range children {
		if c == id {
			t.nodes[parent].children = append(children[:i:i], children[i+1:]...)
			break
		}
	}
	t.release(id)
	return true
}

// consume returns the number of leading segments matched by the node, or zero.
func (t *Tree) consume(id NodeID, segments []string) int {
	if len(segments) == 0 {
		return 0
	}
	n := &t.nodes[id]
	switch n.kind {
	case anchoredSegment:
		if n.regex.MatchString(segments[0]) {
			return 1
		}
		return 0
	case substringSegment:
		return splitSubstring(n.regex, segments)
	}
	if n.segment == segments[0] {
		return 1
	}
	return 0
}

// Lookup walks the tree matching the segments and returns the deepest node reached.
// The first child that matches is followed.  Truncated is true if input remained that
// no child could match, meaning the query ran past the configured depth.
func (t *Tree) Lookup(segments []string) (NodeID, bool) {
	id := RootNode
	rest := segments
	for {
		next := NoNode
		consumed := 0
		for _, c := range t.nodes[id].children {
			if consumed = t.consume(c, rest); consumed > 0 {
				next = c
				break
			}
		}
		if next == NoNode {
			return id, len(rest) > 0
		}
		id = next
		rest = rest[consumed:]
	}
}

// Clone returns a deep copy of the tree that shares no nodes with the original.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		nodes:      make([]node, 0, t.Len()),
		substrings: t.substrings,
	}
	var clone func(id NodeID, parent NodeID) NodeID
	clone = func(id NodeID, parent NodeID) NodeID {
		n := t.nodes[id]
		newID := NodeID(len(c.nodes))
		c.nodes = append(c.nodes, node{
			segment: n.segment,
			kind:    n.kind,
			regex:   n.regex,
			status:  n.status,
			depth:   n.depth,
			parent:  parent,
			live:    true,
		})
		children := make([]NodeID, 0, len(n.children))
		for _, child := range n.children {
			children = append(children, clone(child, newID))
		}
		c.nodes[newID].children = children
		return newID
	}
	clone(RootNode, NoNode)
	return c
}

// Rules returns every node except the root in pre-order.
func (t *Tree) Rules() []Rule {
	rules := []Rule{}
	var walk func(id NodeID, prefix []string)
	walk = func(id NodeID, prefix []string) {
		for _, c := range t.nodes[id].children {
			segments := append(append([]string{}, prefix...), t.nodes[c].segment)
			rules = append(rules, Rule{Segments: segments, Status: t.nodes[c].status})
			walk(c, segments)
		}
	}
	walk(RootNode, []string{})
	return rules
}

// shadowed calls fn for each pair of siblings where the first can match the second's literal segment.
func (t *Tree) shadowed(fn func(parent NodeID, first NodeID, second NodeID)) {
	var walk func(id NodeID)
	walk = func(id NodeID) {
		children := t.nodes[id].children
		for i, a := range children {
			for _, b := range children[i+1:] {
				na, nb := &t.nodes[a], &t.nodes[b]
				switch {
				case na.kind == anchoredSegment && nb.kind == literalSegment && na.regex.MatchString(nb.segment):
					fn(id, a, b)
				case na.kind == literalSegment && nb.kind == anchoredSegment && nb.regex.MatchString(na.segment):
					fn(id, a, b)
				}
			}
			walk(a)
		}
	}
	walk(RootNode)
}
