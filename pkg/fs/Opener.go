// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package fs

import (
	"context"
)

// Opener resolves a locator, e.g., "/data" or "s3://bucket/prefix", to a file system.
type Opener interface {
	Open(ctx context.Context, locator string) (FileSystem, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, locator string) (FileSystem, error)

func (f OpenerFunc) Open(ctx context.Context, locator string) (FileSystem, error) {
	return f(ctx, locator)
}
