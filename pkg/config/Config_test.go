// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/rules"
)

const example = `
layers:
  - name: base
    default: include
    rules:
      - path: "|node_modules/|"
        status: ignore
      - path: tmp
        status: stop
  - name: project
    parent: base
    default: undefined
    rules:
      - path: 'src/{.*\.go}'
        status: include
jobs:
  - name: home
    source: /home/alice
    destination: s3://backups/alice
    layer: project
`

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bisync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(example), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Layers, 2)
	assert.Equal(t, rules.Include, c.Layers[0].Default)
	assert.Equal(t, rules.Ignore, c.Layers[0].Rules[0].Status)

	layers := rules.NewRegistry()
	jobs := job.NewRegistry()
	require.NoError(t, c.Apply(layers, jobs))

	project := layers.Get("project")
	require.NotNil(t, project)
	assert.Equal(t, "base", project.Parent().Name())
	assert.Equal(t, rules.Include, project.GetPathStatus([]string{"src", "main.go"}))
	assert.Equal(t, rules.Ignore, project.GetPathStatus([]string{"web", "node_modules", "x.js"}))
	assert.Equal(t, rules.Stop, project.GetPathStatus([]string{"tmp"}))

	home := jobs.Get("home")
	require.NotNil(t, home)
	assert.Equal(t, project, home.Layer)
	assert.Equal(t, "s3://backups/alice", home.DestinationPath)
}

func TestApplyUpdatesJobs(t *testing.T) {
	c, err := Parse(strings.NewReader(example))
	require.NoError(t, err)
	layers := rules.NewRegistry()
	jobs := job.NewRegistry()
	require.NoError(t, c.Apply(layers, jobs))

	home := jobs.Get("home")
	home.SourceIndex.Set([]string{"a.txt"}, time.Now())

	// reapplying the same config keeps the indexes
	require.NoError(t, c.Apply(layers, jobs))
	assert.Equal(t, 1, home.SourceIndex.Len())

	c.Jobs[0].Destination = "s3://backups/alice2"
	require.NoError(t, c.Apply(layers, jobs))
	assert.Equal(t, home, jobs.Get("home"))
	assert.Equal(t, "s3://backups/alice2", home.DestinationPath)
	assert.Equal(t, 0, home.SourceIndex.Len())
}

func TestValidate(t *testing.T) {
	layers := rules.NewRegistry()
	jobs := job.NewRegistry()

	testCases := []struct {
		name   string
		config string
	}{
		{name: "UnknownField", config: "layers:\n  - name: a\n    colour: red\n"},
		{name: "UnknownStatus", config: "layers:\n  - name: a\n    default: maybe\n"},
		{name: "MissingName", config: "layers:\n  - default: include\n"},
		{name: "DuplicateLayer", config: "layers:\n  - name: a\n  - name: a\n"},
		{name: "ParentAfterChild", config: "layers:\n  - name: b\n    parent: a\n  - name: a\n"},
		{name: "InvalidRegex", config: "layers:\n  - name: a\n    rules:\n      - path: '{[}'\n        status: stop\n"},
		{name: "MissingLayer", config: "jobs:\n  - name: j\n    source: /a\n    destination: /b\n    layer: missing\n"},
		{name: "MissingDestination", config: "layers:\n  - name: a\njobs:\n  - name: j\n    source: /a\n    layer: a\n"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			c, err := Parse(strings.NewReader(testCase.config))
			if err != nil {
				return
			}
			err = c.Apply(layers, jobs)
			require.Error(t, err)
			assert.Equal(t, 0, layers.Len())
			assert.Equal(t, 0, jobs.Len())
		})
	}

	c, err := Parse(strings.NewReader("layers:\n  - name: a\n    parent: missing\n"))
	require.NoError(t, err)
	err = c.Apply(layers, jobs)
	var configurationError *rules.ConfigurationError
	assert.True(t, errors.As(err, &configurationError))
}

func TestExport(t *testing.T) {
	c, err := Parse(strings.NewReader(example))
	require.NoError(t, err)
	layers := rules.NewRegistry()
	jobs := job.NewRegistry()
	require.NoError(t, c.Apply(layers, jobs))

	buf := &bytes.Buffer{}
	require.NoError(t, Export(layers, jobs).Write(buf))

	exported, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, c.Jobs, exported.Jobs)
	require.Len(t, exported.Layers, 2)
	assert.Equal(t, c.Layers[0], exported.Layers[0])
	assert.Equal(t, c.Layers[1].Rules, exported.Layers[1].Rules)
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Layers)
}
