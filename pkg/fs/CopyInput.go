// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package fs

import (
	"os"
	"time"
)

type CopyInput struct {
	SourceName            string
	SourceFileSystem      FileSystem
	DestinationName       string
	DestinationFileSystem FileSystem
	// Mode is the permission of the created file.  Defaults to 0644.
	Mode os.FileMode
	// ModTime is applied to the destination after copying unless zero.
	ModTime     time.Time
	MakeParents bool
	Logger      Logger
}
