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
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/rules"
)

// Rule declares the status of a path pattern, e.g., "src/{.*\.go}".
type Rule struct {
	Path   string       `yaml:"path"`
	Status rules.Status `yaml:"status"`
}

type Layer struct {
	Name    string       `yaml:"name"`
	Parent  string       `yaml:"parent,omitempty"`
	Default rules.Status `yaml:"default"`
	Rules   []Rule       `yaml:"rules,omitempty"`
}

type Job struct {
	Name        string `yaml:"name"`
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	Layer       string `yaml:"layer"`
}

// Config is a declarative set of layers and jobs.
type Config struct {
	Layers []Layer `yaml:"layers,omitempty"`
	Jobs   []Job   `yaml:"jobs,omitempty"`
}

// Parse decodes a config, rejecting unknown fields.
func Parse(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	c := &Config{}
	if err := decoder.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return c, nil
		}
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return c, nil
}

// Load reads the config file at the path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config %q: %w", path, err)
	}
	c, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("error loading config %q: %w", path, err)
	}
	return c, nil
}

// Validate checks the config against itself and the registries without changing anything.
func (c *Config) Validate(layers *rules.Registry, jobs *job.Registry) error {
	declared := map[string]string{}
	for _, l := range c.Layers {
		if len(l.Name) == 0 {
			return &rules.ConfigurationError{Name: l.Name, Reason: "layer name is missing"}
		}
		if _, ok := declared[l.Name]; ok {
			return &rules.ConfigurationError{Name: l.Name, Reason: "layer is declared more than once"}
		}
		if len(l.Parent) > 0 {
			if _, ok := declared[l.Parent]; !ok && layers.Get(l.Parent) == nil {
				return &rules.ConfigurationError{Name: l.Name, Reason: fmt.Sprintf("parent layer %q must be declared before its children", l.Parent)}
			}
		}
		if existing := layers.Get(l.Name); existing != nil {
			parent := ""
			if existing.Parent() != nil {
				parent = existing.Parent().Name()
			}
			if parent != l.Parent {
				return &rules.ConfigurationError{Name: l.Name, Reason: fmt.Sprintf("layer exists with parent %q", parent)}
			}
		}
		// compile every rule against a scratch layer
		scratch := rules.NewLayer(l.Name, l.Default)
		for _, r := range l.Rules {
			if err := scratch.SetRule(rules.ParsePath(r.Path), r.Status); err != nil {
				return err
			}
		}
		declared[l.Name] = l.Parent
	}
	names := map[string]struct{}{}
	for _, j := range c.Jobs {
		if len(j.Name) == 0 {
			return &rules.ConfigurationError{Name: j.Name, Reason: "job name is missing"}
		}
		if _, ok := names[j.Name]; ok {
			return &rules.ConfigurationError{Name: j.Name, Reason: "job is declared more than once"}
		}
		names[j.Name] = struct{}{}
		if len(j.Source) == 0 || len(j.Destination) == 0 {
			return &rules.ConfigurationError{Name: j.Name, Reason: "job source and destination are required"}
		}
		if _, ok := declared[j.Layer]; !ok && layers.Get(j.Layer) == nil {
			return &rules.ConfigurationError{Name: j.Name, Reason: fmt.Sprintf("layer %q not found", j.Layer)}
		}
	}
	return nil
}

// Apply validates the config, then creates or updates its layers and jobs.
// Rules are merged into existing layers.  The indexes of a job are cleared
// when its source or destination changes.
func (c *Config) Apply(layers *rules.Registry, jobs *job.Registry) error {
	if err := c.Validate(layers, jobs); err != nil {
		return err
	}
	for _, l := range c.Layers {
		layer := layers.Get(l.Name)
		if layer == nil {
			var parent *rules.Layer
			if len(l.Parent) > 0 {
				parent = layers.Get(l.Parent)
			}
			created, err := layers.NewLayer(l.Name, l.Default, parent)
			if err != nil {
				return err
			}
			layer = created
		}
		layer.SetDefault(l.Default)
		for _, r := range l.Rules {
			if err := layer.SetRule(rules.ParsePath(r.Path), r.Status); err != nil {
				return err
			}
		}
	}
	for _, j := range c.Jobs {
		layer := layers.Get(j.Layer)
		existing := jobs.Get(j.Name)
		if existing == nil {
			if err := jobs.Add(job.New(j.Source, j.Destination, layer, j.Name)); err != nil {
				return err
			}
			continue
		}
		if existing.SourcePath != j.Source || existing.DestinationPath != j.Destination {
			existing.SourcePath = j.Source
			existing.DestinationPath = j.Destination
			existing.ClearIndexes()
		}
		existing.Layer = layer
	}
	return nil
}

// Export returns the config describing the registries.
func Export(layers *rules.Registry, jobs *job.Registry) *Config {
	c := &Config{
		Layers: []Layer{},
		Jobs:   []Job{},
	}
	layers.Walk(func(layer *rules.Layer) {
		l := Layer{
			Name:    layer.Name(),
			Default: layer.Default(),
			Rules:   []Rule{},
		}
		if layer.Parent() != nil {
			l.Parent = layer.Parent().Name()
		}
		for _, r := range layer.Rules() {
			if r.Status == rules.Undefined {
				continue
			}
			l.Rules = append(l.Rules, Rule{Path: rules.FormatPath(r.Segments), Status: r.Status})
		}
		c.Layers = append(c.Layers, l)
	})
	for _, j := range jobs.List() {
		c.Jobs = append(c.Jobs, Job{
			Name:        j.Name,
			Source:      j.SourcePath,
			Destination: j.DestinationPath,
			Layer:       j.Layer.Name(),
		})
	}
	return c
}

// Write encodes the config as YAML.
func (c *Config) Write(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return encoder.Close()
}
