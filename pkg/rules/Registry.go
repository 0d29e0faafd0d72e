// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package rules

import (
	"fmt"
	"strings"
)

const (
	// PathSeparator separates layer names in a layer path, e.g., "base->project".
	PathSeparator = "->"
	// CopySuffix is appended to the names of duplicated layers.
	CopySuffix = "_copy"
)

// Registry owns every layer.  Layer names are unique across the registry.
type Registry struct {
	roots []*Layer
}

func NewRegistry() *Registry {
	return &Registry{
		roots: []*Layer{},
	}
}

// Roots returns the layers without a parent.
func (r *Registry) Roots() []*Layer {
	return append([]*Layer{}, r.roots...)
}

// Walk calls fn for every layer in the registry.
func (r *Registry) Walk(fn func(layer *Layer)) {
	for _, root := range r.roots {
		root.Walk(fn)
	}
}

// Len returns the number of layers in the registry.
func (r *Registry) Len() int {
	count := 0
	r.Walk(func(layer *Layer) {
		count++
	})
	return count
}

func (r *Registry) has(name string) bool {
	for _, root := range r.roots {
		if root.FindByName(name) != nil {
			return true
		}
	}
	return false
}

func (r *Registry) contains(layer *Layer) bool {
	for _, root := range r.roots {
		if root == layer.Root() {
			return true
		}
	}
	return false
}

// NewLayer creates a layer and registers it under the parent, or as a root layer if parent is nil.
func (r *Registry) NewLayer(name string, defaultStatus Status, parent *Layer) (*Layer, error) {
	if len(name) == 0 || strings.Contains(name, PathSeparator) {
		return nil, &ConfigurationError{Name: name, Reason: fmt.Sprintf("layer names must be non-empty and cannot contain %q", PathSeparator)}
	}
	if r.has(name) {
		return nil, &ConfigurationError{Name: name, Reason: "a layer with the same name already exists"}
	}
	if parent != nil && !r.contains(parent) {
		return nil, &ConfigurationError{Name: name, Reason: fmt.Sprintf("parent layer %q is not registered", parent.name)}
	}
	layer := NewLayer(name, defaultStatus)
	if parent == nil {
		r.roots = append(r.roots, layer)
		return layer, nil
	}
	layer.parent = parent
	parent.children = append(parent.children, layer)
	return layer, nil
}

// Add registers detached layers as root layers.  If any name is already taken,
// nothing is added.
func (r *Registry) Add(layers ...*Layer) error {
	names := map[string]struct{}{}
	for _, layer := range layers {
		if layer.parent != nil {
			return &ConfigurationError{Name: layer.name, Reason: "only layers without a parent can be added"}
		}
		if r.contains(layer) {
			return &ConfigurationError{Name: layer.name, Reason: "layer is already registered"}
		}
		var err error
		layer.Walk(func(l *Layer) {
			if err != nil {
				return
			}
			if _, ok := names[l.name]; ok || r.has(l.name) {
				err = &ConfigurationError{Name: l.name, Reason: "a layer with the same name already exists"}
				return
			}
			names[l.name] = struct{}{}
		})
		if err != nil {
			return err
		}
	}
	r.roots = append(r.roots, layers...)
	return nil
}

// Get returns the layer with the given name path, e.g., "base->project".
// A single name that is not a root layer matches the first layer with that name.
func (r *Registry) Get(name string) *Layer {
	if len(name) == 0 {
		return nil
	}
	names := strings.Split(name, PathSeparator)
	for i, n := range names {
		names[i] = strings.TrimSpace(n)
	}
	var possible *Layer
	for _, root := range r.roots {
		if layer := root.FindByPath(names); layer != nil {
			return layer
		}
		if len(names) == 1 && possible == nil {
			possible = root.FindByName(names[0])
		}
	}
	return possible
}

// Remove unregisters the layer and every layer beneath it.
// It returns the removed layers, or nil if the layer was not registered.
func (r *Registry) Remove(layer *Layer) []*Layer {
	if layer == nil || !r.contains(layer) {
		return nil
	}
	removed := []*Layer{}
	layer.Walk(func(l *Layer) {
		removed = append(removed, l)
	})
	if parent := layer.parent; parent != nil {
		for i, child := range parent.children {
			if child == layer {
				parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
				break
			}
		}
		layer.parent = nil
	} else {
		for i, root := range r.roots {
			if root == layer {
				r.roots = append(r.roots[:i:i], r.roots[i+1:]...)
				break
			}
		}
	}
	for _, l := range removed {
		l.children = []*Layer{}
		l.parent = nil
	}
	return removed
}

// Duplicate registers a deep copy of the layer and its descendants next to the original.
// Copied layers are renamed with a unique suffix.
func (r *Registry) Duplicate(layer *Layer) (*Layer, error) {
	if layer == nil || !r.contains(layer) {
		return nil, &ConfigurationError{Name: "", Reason: "cannot duplicate a layer that is not registered"}
	}
	taken := map[string]struct{}{}
	rename := func(name string) string {
		candidate := name + CopySuffix
		for i := 2; ; i++ {
			if _, ok := taken[candidate]; !ok && !r.has(candidate) {
				break
			}
			candidate = fmt.Sprintf("%s%s%d", name, CopySuffix, i)
		}
		taken[candidate] = struct{}{}
		return candidate
	}
	dup := layer.clone(rename)
	if parent := layer.parent; parent != nil {
		dup.parent = parent
		parent.children = append(parent.children, dup)
	} else {
		r.roots = append(r.roots, dup)
	}
	return dup, nil
}
