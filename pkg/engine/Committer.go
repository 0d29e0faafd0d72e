// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"context"
)

// Committer durably persists the indexes of the jobs being synchronized.
type Committer interface {
	Commit(ctx context.Context) error
}

type CommitterFunc func(ctx context.Context) error

func (f CommitterFunc) Commit(ctx context.Context) error {
	return f(ctx)
}
