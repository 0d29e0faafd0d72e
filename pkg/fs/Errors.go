// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package fs

import (
	"errors"
)

// ErrNotSupported is returned by file systems that cannot perform an operation, e.g., symlinks on S3.
var ErrNotSupported = errors.New("operation not supported by file system")
