// =================================================================
//
// Work of the U.S. Department of Defense, Defense Digital Service.
// Released as open source under the MIT License.  See LICENSE file.
//
// =================================================================

package fs

import (
	"context"
	"os"
	"time"
)

// FileSystem is one side of a synchronization.  Names are relative to Root
// and built with Join.
type FileSystem interface {
	Chmod(ctx context.Context, name string, mode os.FileMode) error
	Chtimes(ctx context.Context, name string, modTime time.Time) error
	Create(ctx context.Context, name string, mode os.FileMode) (File, error)
	Dir(name string) string
	IsNotExist(err error) bool
	Join(name ...string) string
	Lstat(ctx context.Context, name string) (*DirectoryEntry, error)
	MkdirAll(ctx context.Context, name string, mode os.FileMode) error
	Open(ctx context.Context, name string) (File, error)
	ReadDir(ctx context.Context, name string) ([]*DirectoryEntry, error)
	Readlink(ctx context.Context, name string) (string, error)
	Remove(ctx context.Context, name string) error
	RemoveAll(ctx context.Context, name string) error
	Root() string
	Symlink(ctx context.Context, target string, name string) error
	SupportsPermissions() bool
	SupportsSymlinks() bool
}
