// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChain(t *testing.T, baseDefault Status, projectDefault Status) (*Layer, *Layer) {
	t.Helper()
	r := NewRegistry()
	base, err := r.NewLayer("base", baseDefault, nil)
	require.NoError(t, err)
	project, err := r.NewLayer("project", projectDefault, base)
	require.NoError(t, err)
	return base, project
}

func TestResolveDefault(t *testing.T) {
	for _, status := range []Status{Undefined, Include, Ignore, Stop} {
		layer := NewLayer("only", status)
		for _, p := range [][]string{{}, {"a"}, {"a", "b", "c"}} {
			assert.Equal(t, status, layer.GetPathStatus(p))
		}
	}
}

func TestResolveStopWins(t *testing.T) {
	base, project := newChain(t, Include, Include)
	require.NoError(t, base.SetRule([]string{"a"}, Stop))
	require.NoError(t, project.SetRule([]string{"a", "b"}, Include))
	require.NoError(t, project.SetRule([]string{"c"}, Ignore))

	assert.Equal(t, Stop, project.GetPathStatus([]string{"a", "b"}))
	assert.Equal(t, Stop, project.GetPathStatus([]string{"a", "b", "c"}))
	assert.Equal(t, Ignore, project.GetPathStatus([]string{"c"}))
	assert.Equal(t, Include, project.GetPathStatus([]string{"d"}))
}

func TestResolveDeeperWins(t *testing.T) {
	base, project := newChain(t, Include, Include)
	require.NoError(t, base.SetRule([]string{"a"}, Ignore))
	require.NoError(t, project.SetRule([]string{"a", "b"}, Include))
	assert.Equal(t, Include, project.GetPathStatus([]string{"a", "b", "x"}))
	assert.Equal(t, Ignore, project.GetPathStatus([]string{"a", "y"}))

	// the deeper rule wins even when it lives in the ancestor layer
	base, project = newChain(t, Include, Include)
	require.NoError(t, base.SetRule([]string{"a", "b"}, Include))
	require.NoError(t, project.SetRule([]string{"a"}, Ignore))
	assert.Equal(t, Include, project.GetPathStatus([]string{"a", "b", "x"}))
	assert.Equal(t, Ignore, project.GetPathStatus([]string{"a", "y"}))
}

func TestResolveTieFavoursClosestLayer(t *testing.T) {
	base, project := newChain(t, Ignore, Include)
	require.NoError(t, base.SetRule([]string{"a"}, Ignore))
	require.NoError(t, project.SetRule([]string{"a"}, Include))
	assert.Equal(t, Include, project.GetPathStatus([]string{"a"}))
	assert.Equal(t, Ignore, base.GetPathStatus([]string{"a"}))
	// defaults tie as well
	assert.Equal(t, Include, project.GetPathStatus([]string{"z"}))
}

func TestResolveUndefinedDefaultInherits(t *testing.T) {
	_, project := newChain(t, Ignore, Undefined)
	assert.Equal(t, Ignore, project.GetPathStatus([]string{"a"}))
}

func TestResolveSyntheticNodesInherit(t *testing.T) {
	layer := NewLayer("only", Include)
	require.NoError(t, layer.SetRule([]string{"a"}, Ignore))
	require.NoError(t, layer.SetRule([]string{"a", "b", "c"}, Include))

	resolution := layer.Resolve([]string{"a"})
	assert.Equal(t, Ignore, resolution.Status)
	assert.True(t, resolution.Beneath)
	assert.False(t, resolution.Truncated)

	resolution = layer.Resolve([]string{"a", "b"})
	assert.Equal(t, Ignore, resolution.Status)
	assert.True(t, resolution.Beneath)

	assert.Equal(t, Include, layer.GetPathStatus([]string{"a", "b", "c"}))
	assert.Equal(t, Include, layer.GetPathStatus([]string{"a", "b", "c", "d"}))
	assert.Equal(t, Ignore, layer.GetPathStatus([]string{"a", "b", "x"}))

	resolution = layer.Resolve([]string{"a", "x"})
	assert.Equal(t, Ignore, resolution.Status)
	assert.False(t, resolution.Beneath)
	assert.True(t, resolution.Truncated)
}

func TestResolveSettled(t *testing.T) {
	base, project := newChain(t, Include, Undefined)
	require.NoError(t, base.SetRule([]string{"a", "b"}, Ignore))
	require.NoError(t, project.SetRule([]string{"{c.*}"}, Ignore))

	assert.True(t, project.Resolve([]string{"x", "y"}).Settled)
	assert.True(t, project.Resolve([]string{"a", "x"}).Settled)
	assert.False(t, project.Resolve([]string{"a"}).Settled)
	assert.False(t, project.Resolve([]string{"a", "b"}).Settled)
	assert.False(t, project.Resolve([]string{"cat"}).Settled)

	require.NoError(t, project.SetRule([]string{"|marker/|"}, Ignore))
	assert.False(t, project.Resolve([]string{"x", "y"}).Settled)
}

func TestResolveSubstringMarker(t *testing.T) {
	layer := NewLayer("only", Include)
	require.NoError(t, layer.SetRule([]string{"|node_modules/|"}, Ignore))
	require.NoError(t, layer.SetRule([]string{"|node_modules/|", "keep"}, Include))

	assert.Equal(t, Include, layer.GetPathStatus([]string{"web", "src"}))
	assert.Equal(t, Ignore, layer.GetPathStatus([]string{"web", "node_modules", "react"}))
	assert.Equal(t, Include, layer.GetPathStatus([]string{"web", "node_modules", "keep"}))
}

func TestResolveBeneathSubstring(t *testing.T) {
	layer := NewLayer("only", Ignore)
	require.NoError(t, layer.SetRule([]string{"|keep/|"}, Include))

	resolution := layer.Resolve([]string{"a"})
	assert.Equal(t, Ignore, resolution.Status)
	assert.True(t, resolution.Truncated)
	assert.True(t, resolution.Beneath)

	assert.True(t, layer.Resolve([]string{"a", "keep"}).Beneath)
	assert.Equal(t, Include, layer.GetPathStatus([]string{"a", "keep", "f.txt"}))

	assert.False(t, layer.Resolve([]string{"a", "keep", "sub"}).Settled)

	plain := NewLayer("plain", Ignore)
	require.NoError(t, plain.SetRule([]string{"keep"}, Include))
	assert.False(t, plain.Resolve([]string{"a"}).Beneath)
}

func TestResolveDoesNotMutate(t *testing.T) {
	base, project := newChain(t, Include, Ignore)
	require.NoError(t, base.SetRule([]string{"a", "b"}, Stop))
	require.NoError(t, project.SetRule([]string{"c"}, Include))
	before := []int{base.Tree().Len(), project.Tree().Len()}
	rules := [][]Rule{base.Rules(), project.Rules()}

	for _, p := range [][]string{{"a"}, {"a", "b"}, {"c", "d"}, {"x"}} {
		first := project.Resolve(p)
		second := project.Resolve(p)
		assert.Equal(t, first, second)
	}

	assert.Equal(t, before, []int{base.Tree().Len(), project.Tree().Len()})
	assert.Equal(t, rules, [][]Rule{base.Rules(), project.Rules()})
}

func TestPathExists(t *testing.T) {
	base, project := newChain(t, Include, Include)
	require.NoError(t, base.SetRule([]string{"a", "b"}, Ignore))
	require.NoError(t, project.SetRule([]string{"c"}, Include))

	assert.True(t, project.PathExists([]string{}))
	// created only to reach a/b
	assert.False(t, project.PathExists([]string{"a"}))
	assert.True(t, project.PathExists([]string{"a", "b"}))
	assert.True(t, project.PathExists([]string{"c"}))
	assert.False(t, project.PathExists([]string{"a", "b", "c"}))
	assert.False(t, project.PathExists([]string{"d"}))
	assert.False(t, base.PathExists([]string{"c"}))
}

func TestLint(t *testing.T) {
	layer := NewLayer("only", Include)
	require.NoError(t, layer.SetRule([]string{"src", "{.*\\.tmp}"}, Ignore))
	require.NoError(t, layer.SetRule([]string{"src", "keep.tmp"}, Include))
	require.NoError(t, layer.SetRule([]string{"src", "other"}, Include))

	errs := layer.Lint()
	require.Len(t, errs, 1)
	assert.Equal(t, "only", errs[0].Layer)
	assert.Equal(t, []string{"src"}, errs[0].Path)
	assert.Equal(t, "{.*\\.tmp}", errs[0].First)
	assert.Equal(t, "keep.tmp", errs[0].Second)
	assert.Contains(t, errs[0].Error(), "shadows")
}
