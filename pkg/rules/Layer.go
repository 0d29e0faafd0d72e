// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package rules

// Layer is a named scope of path rules.  A layer inherits the rules of its parent
// layer and overrides them where it declares a more specific rule.
type Layer struct {
	name     string
	tree     *Tree
	parent   *Layer
	children []*Layer
}

// NewLayer returns a detached layer with no rules.  Use Registry.Add to register it.
func NewLayer(name string, defaultStatus Status) *Layer {
	return &Layer{
		name:     name,
		tree:     NewTree(defaultStatus),
		children: []*Layer{},
	}
}

func (l *Layer) Name() string {
	return l.name
}

func (l *Layer) Parent() *Layer {
	return l.parent
}

func (l *Layer) Children() []*Layer {
	return append([]*Layer{}, l.children...)
}

// Tree returns the pattern tree owned by the layer.
func (l *Layer) Tree() *Tree {
	return l.tree
}

func (l *Layer) Default() Status {
	return l.tree.Default()
}

func (l *Layer) SetDefault(status Status) {
	l.tree.SetDefault(status)
}

// SetRule declares the status of a path in this layer.
func (l *Layer) SetRule(segments []string, status Status) error {
	if len(segments) == 0 {
		l.tree.SetDefault(status)
		return nil
	}
	if err := l.tree.SetStatus(segments, status); err != nil {
		return err
	}
	return nil
}

// DeleteRule removes the rule at the path and every rule beneath it.
func (l *Layer) DeleteRule(segments []string) bool {
	return l.tree.DeletePath(segments)
}

func (l *Layer) Rules() []Rule {
	return l.tree.Rules()
}

// Root returns the topmost ancestor layer.
func (l *Layer) Root() *Layer {
	root := l
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Chain returns the layer followed by its ancestors, most specific first.
func (l *Layer) Chain() []*Layer {
	chain := []*Layer{}
	for layer := l; layer != nil; layer = layer.parent {
		chain = append(chain, layer)
	}
	return chain
}

// Path returns the names of the layers from the root layer down to this layer.
func (l *Layer) Path() []string {
	chain := l.Chain()
	names := make([]string, len(chain))
	for i, layer := range chain {
		names[len(chain)-1-i] = layer.name
	}
	return names
}

// FindByPath returns the layer reached by following the names from this layer,
// where the first name is the name of this layer.
func (l *Layer) FindByPath(names []string) *Layer {
	if len(names) == 0 || l.name != names[0] {
		return nil
	}
	if len(names) == 1 {
		return l
	}
	for _, child := range l.children {
		if layer := child.FindByPath(names[1:]); layer != nil {
			return layer
		}
	}
	return nil
}

// FindByName returns the first layer with the name in depth-first order.
func (l *Layer) FindByName(name string) *Layer {
	if l.name == name {
		return l
	}
	for _, child := range l.children {
		if layer := child.FindByName(name); layer != nil {
			return layer
		}
	}
	return nil
}

// Walk calls fn for the layer and each descendant layer in depth-first order.
func (l *Layer) Walk(fn func(layer *Layer)) {
	fn(l)
	for _, child := range l.children {
		child.Walk(fn)
	}
}

// Resolve resolves the path against this layer and its ancestors.
func (l *Layer) Resolve(segments []string) Resolution {
	return Resolve(l.Chain(), segments)
}

// GetPathStatus returns the effective status of the path.
func (l *Layer) GetPathStatus(segments []string) Status {
	return Resolve(l.Chain(), segments).Status
}

// PathExists returns true if this layer or an ancestor declares a rule at exactly the path.
// Nodes created only to reach a deeper rule have an undefined status and do not count.
func (l *Layer) PathExists(segments []string) bool {
	if len(segments) == 0 {
		return true
	}
	for layer := l; layer != nil; layer = layer.parent {
		id, truncated := layer.tree.Lookup(segments)
		if !truncated && id != RootNode && layer.tree.Status(id) != Undefined {
			return true
		}
	}
	return false
}

// Lint returns the sibling rules in this layer whose order decides which one applies.
func (l *Layer) Lint() []*AmbiguousRuleError {
	errs := []*AmbiguousRuleError{}
	l.tree.shadowed(func(parent NodeID, first NodeID, second NodeID) {
		errs = append(errs, &AmbiguousRuleError{
			Layer:  l.name,
			Path:   l.tree.PathOf(parent),
			First:  l.tree.Segment(first),
			Second: l.tree.Segment(second),
		})
	})
	return errs
}

// clone deep copies the layer and its descendants.  The copy has no parent.
func (l *Layer) clone(rename func(name string) string) *Layer {
	c := &Layer{
		name:     rename(l.name),
		tree:     l.tree.Clone(),
		children: make([]*Layer, 0, len(l.children)),
	}
	for _, child := range l.children {
		cc := child.clone(rename)
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}
