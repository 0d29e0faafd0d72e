// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package fs

import (
	"os"
)

type EntryType int

const (
	TypeOther EntryType = iota
	TypeFile
	TypeDirectory
	TypeSymlink
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	}
	return "other"
}

// TypeOf returns the entry type for the file mode.  Symlinks are never followed.
func TypeOf(mode os.FileMode) EntryType {
	switch {
	case mode&os.ModeSymlink != 0:
		return TypeSymlink
	case mode.IsDir():
		return TypeDirectory
	case mode.IsRegular():
		return TypeFile
	}
	return TypeOther
}
