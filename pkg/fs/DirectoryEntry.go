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

	"github.com/goccy/go-json"
)

type DirectoryEntry struct {
	name      string
	entryType EntryType
	modTime   time.Time
	size      int64
	mode      os.FileMode
}

func (de *DirectoryEntry) IsDir() bool {
	return de.entryType == TypeDirectory
}

func (de *DirectoryEntry) IsSymlink() bool {
	return de.entryType == TypeSymlink
}

func (de *DirectoryEntry) Name() string {
	return de.name
}

func (de *DirectoryEntry) Type() EntryType {
	return de.entryType
}

func (de *DirectoryEntry) ModTime() time.Time {
	return de.modTime
}

// Mode returns the permission bits of the entry.
func (de *DirectoryEntry) Mode() os.FileMode {
	return de.mode
}

func (de *DirectoryEntry) Size() int64 {
	return de.size
}

func (de *DirectoryEntry) String() string {
	return de.name
}

func (de *DirectoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"mode":    de.mode.String(),
		"modTime": de.modTime,
		"name":    de.name,
		"size":    de.size,
		"type":    de.entryType.String(),
	})
}

func NewDirectoryEntry(name string, entryType EntryType, modTime time.Time, size int64, mode os.FileMode) *DirectoryEntry {
	return &DirectoryEntry{
		name:      name,
		entryType: entryType,
		modTime:   modTime,
		size:      size,
		mode:      mode.Perm(),
	}
}

// NewDirectoryEntryFromFileInfo returns the entry described by the file info of an unfollowed lstat.
func NewDirectoryEntryFromFileInfo(fi os.FileInfo) *DirectoryEntry {
	return NewDirectoryEntry(fi.Name(), TypeOf(fi.Mode()), fi.ModTime(), fi.Size(), fi.Mode())
}
