// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package index

import (
	"sort"
	"time"
)

type nodeID int

const (
	noNode   nodeID = -1
	rootNode nodeID = 0
)

type node struct {
	name     string
	marker   time.Time
	marked   bool
	parent   nodeID
	children map[string]nodeID
}

// Index records, for one side of a job, the modification time at which each path
// was last confirmed synchronized.  Paths without a marker were never confirmed.
type Index struct {
	nodes   []node
	free    []nodeID
	markers int
}

func New() *Index {
	return &Index{
		nodes: []node{
			{parent: noNode, children: map[string]nodeID{}},
		},
	}
}

func (i *Index) alloc(n node) nodeID {
	if len(i.free) > 0 {
		id := i.free[len(i.free)-1]
		i.free = i.free[:len(i.free)-1]
		i.nodes[id] = n
		return id
	}
	i.nodes = append(i.nodes, n)
	return nodeID(len(i.nodes) - 1)
}

func (i *Index) release(id nodeID) {
	for _, child := range i.nodes[id].children {
		i.release(child)
	}
	if i.nodes[id].marked {
		i.markers--
	}
	i.nodes[id] = node{parent: noNode}
	i.free = append(i.free, id)
}

func (i *Index) find(segments []string) nodeID {
	id := rootNode
	for _, segment := range segments {
		child, ok := i.nodes[id].children[segment]
		if !ok {
			return noNode
		}
		id = child
	}
	return id
}

// Get returns the marker recorded for the path.
func (i *Index) Get(segments []string) (time.Time, bool) {
	id := i.find(segments)
	if id == noNode || !i.nodes[id].marked {
		return time.Time{}, false
	}
	return i.nodes[id].marker, true
}

// Set records the marker for the path, creating intermediate nodes as needed.
func (i *Index) Set(segments []string, marker time.Time) {
	id := rootNode
	for _, segment := range segments {
		child, ok := i.nodes[id].children[segment]
		if !ok {
			child = i.alloc(node{name: segment, parent: id, children: map[string]nodeID{}})
			i.nodes[id].children[segment] = child
		}
		id = child
	}
	if !i.nodes[id].marked {
		i.markers++
	}
	i.nodes[id].marker = marker
	i.nodes[id].marked = true
}

// Delete removes the path and everything recorded beneath it.
// Deleting the empty path clears the index.
func (i *Index) Delete(segments []string) bool {
	if len(segments) == 0 {
		i.Clear()
		return true
	}
	id := i.find(segments)
	if id == noNode {
		return false
	}
	n := i.nodes[id]
	delete(i.nodes[n.parent].children, n.name)
	i.release(id)
	return true
}

// Clear removes every marker.
func (i *Index) Clear() {
	*i = *New()
}

// Len returns the number of recorded markers.
func (i *Index) Len() int {
	return i.markers
}

// Walk calls fn for every recorded marker in lexical path order.
func (i *Index) Walk(fn func(segments []string, marker time.Time) error) error {
	return i.walk(rootNode, []string{}, fn)
}

func (i *Index) walk(id nodeID, segments []string, fn func(segments []string, marker time.Time) error) error {
	n := i.nodes[id]
	if n.marked {
		if err := fn(append([]string{}, segments...), n.marker); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := i.walk(n.children[name], append(segments, name), fn); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a compacted copy that shares no state with the index.
func (i *Index) Clone() *Index {
	c := New()
	_ = i.Walk(func(segments []string, marker time.Time) error {
		c.Set(segments, marker)
		return nil
	})
	return c
}
