// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package rules

// Resolution is the result of resolving a path against a chain of layers.
type Resolution struct {
	Status Status
	// Truncated is true if every layer ran out of configured depth before consuming the path.
	Truncated bool
	// Beneath is true if some layer declares rules below exactly this path, or has a
	// substring rule that a longer path could still reach.
	Beneath bool
	// Settled is true if the status holds for every path below this one.
	Settled bool
}

// Resolve returns the effective status of the path for a chain of layers ordered
// from most specific to least specific.  Stop in any layer wins.  Otherwise the
// defined status whose node is closest in depth to the query wins, and ties go
// to the layer found first.  Resolve does not modify the layers.
func Resolve(chain []*Layer, segments []string) Resolution {
	depth := len(segments)
	resolution := Resolution{
		Status:    Undefined,
		Truncated: true,
		Settled:   true,
	}
	best := -1
	for _, layer := range chain {
		t := layer.tree
		id, truncated := t.Lookup(segments)
		if !truncated {
			resolution.Truncated = false
			resolution.Settled = false
			if len(t.nodes[id].children) > 0 {
				resolution.Beneath = true
			}
		}
		if t.HasSubstringSegments() {
			resolution.Settled = false
			if t.SubstringOnRoute(id) {
				resolution.Beneath = true
			}
		}
		// synthetic nodes inherit from the closest declared node on the route
		for id != NoNode && t.nodes[id].status == Undefined {
			id = t.nodes[id].parent
		}
		if id == NoNode {
			continue
		}
		status := t.nodes[id].status
		if status == Stop {
			return Resolution{
				Status:    Stop,
				Truncated: truncated,
				Beneath:   resolution.Beneath,
			}
		}
		if distance := depth - t.nodes[id].depth; best == -1 || distance < best {
			best = distance
			resolution.Status = status
		}
	}
	return resolution
}
