// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package fs

import (
	"io"
)

// File is a file opened for reading or created for writing.
// Files created for writing are only durable after Close returns without error.
type File interface {
	io.ReadWriteCloser
	Name() string
}
