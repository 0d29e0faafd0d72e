// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package rules

import (
	"fmt"
)

// ConfigurationError is returned when a layer or rule declaration is rejected.
// The registry is left unchanged when it is returned.
type ConfigurationError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration for %q: %s: %s", e.Name, e.Reason, e.Err.Error())
	}
	return fmt.Sprintf("invalid configuration for %q: %s", e.Name, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// AmbiguousRuleError describes two sibling rules that can match the same path segment.
// The first declared sibling wins.
type AmbiguousRuleError struct {
	Layer  string
	Path   []string
	First  string
	Second string
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf(
		"ambiguous rules in layer %q under %q: %q shadows %q",
		e.Layer,
		FormatPath(e.Path),
		e.First,
		e.Second,
	)
}
