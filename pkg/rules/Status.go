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

// Status is the resolved disposition of a path.
type Status int

const (
	// Undefined means no applicable rule.
	Undefined Status = iota
	// Include means the path is synchronized.
	Include
	// Ignore means the path is skipped, although its directory may still be walked.
	Ignore
	// Stop means the path is deleted on synchronization.
	Stop
)

func (s Status) String() string {
	switch s {
	case Include:
		return "include"
	case Ignore:
		return "ignore"
	case Stop:
		return "stop"
	}
	return "undefined"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	status, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseStatus parses a status name.
func ParseStatus(str string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "", "undef", "undefined":
		return Undefined, nil
	case "include":
		return Include, nil
	case "ignore":
		return Ignore, nil
	case "stop":
		return Stop, nil
	}
	return Undefined, fmt.Errorf("unknown path status %q", str)
}
