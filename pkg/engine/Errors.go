// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"fmt"
)

type Side string

const (
	Source      Side = "source"
	Destination Side = "destination"
)

// LocatorOpenError is returned when the root of either side cannot be opened.
// Nothing is modified when it is returned.
type LocatorOpenError struct {
	Locator string
	Side    Side
	Err     error
}

func (e *LocatorOpenError) Error() string {
	return fmt.Sprintf("error opening %s %q: %s", e.Side, e.Locator, e.Err.Error())
}

func (e *LocatorOpenError) Unwrap() error {
	return e.Err
}

// EntryError is a failed operation on a single entry.  The entry is skipped and
// its markers are left unchanged.
type EntryError struct {
	Path string
	Op   string
	Side Side
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("error during %s of %q on %s: %s", e.Op, e.Path, e.Side, e.Err.Error())
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
