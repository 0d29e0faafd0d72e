// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"time"
)

// Report counts the operations performed by a run.
type Report struct {
	Job         string
	Started     time.Time
	Finished    time.Time
	Directories int
	Copied      int
	Updated     int
	Linked      int
	Removed     int
	Chmodded    int
	Unchanged   int
	Ignored     int
	Skipped     int
	Commits     int
	Bytes       int64
	Errors      []*EntryError
}

// Operations returns the number of operations that modified either side.
func (r *Report) Operations() int {
	return r.Copied + r.Updated + r.Linked + r.Removed + r.Chmodded
}

func (r *Report) Fields() map[string]interface{} {
	return map[string]interface{}{
		"job":         r.Job,
		"directories": r.Directories,
		"copied":      r.Copied,
		"updated":     r.Updated,
		"linked":      r.Linked,
		"removed":     r.Removed,
		"chmodded":    r.Chmodded,
		"unchanged":   r.Unchanged,
		"ignored":     r.Ignored,
		"skipped":     r.Skipped,
		"errors":      len(r.Errors),
		"elapsed":     r.Finished.Sub(r.Started).String(),
	}
}
