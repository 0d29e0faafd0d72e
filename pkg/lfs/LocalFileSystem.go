// =================================================================
//
// Work of the U.S. Department of Defense, Defense Digital Service.
// Released as open source under the MIT License.  See LICENSE file.
//
// =================================================================

package lfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/navwar/bisync/pkg/fs"
)

type LocalFileSystem struct {
	root string
	fs   afero.Fs
	// links is the file system under root used for symlinks, since BasePathFs rewrites link targets.
	links afero.Fs
}

func (lfs *LocalFileSystem) Chmod(ctx context.Context, name string, mode os.FileMode) error {
	return lfs.fs.Chmod(lfs.path(name), mode.Perm())
}

func (lfs *LocalFileSystem) Chtimes(ctx context.Context, name string, modTime time.Time) error {
	return lfs.fs.Chtimes(lfs.path(name), modTime, modTime)
}

func (lfs *LocalFileSystem) Create(ctx context.Context, name string, mode os.FileMode) (fs.File, error) {
	f, err := lfs.fs.OpenFile(lfs.path(name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (lfs *LocalFileSystem) Dir(name string) string {
	return filepath.Dir(name)
}

func (lfs *LocalFileSystem) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func (lfs *LocalFileSystem) Join(name ...string) string {
	return filepath.Join(name...)
}

func (lfs *LocalFileSystem) Lstat(ctx context.Context, name string) (*fs.DirectoryEntry, error) {
	var fi os.FileInfo
	var err error
	if lstater, ok := lfs.fs.(afero.Lstater); ok {
		fi, _, err = lstater.LstatIfPossible(lfs.path(name))
	} else {
		fi, err = lfs.fs.Stat(lfs.path(name))
	}
	if err != nil {
		return nil, err
	}
	return fs.NewDirectoryEntryFromFileInfo(fi), nil
}

func (lfs *LocalFileSystem) MkdirAll(ctx context.Context, name string, mode os.FileMode) error {
	return lfs.fs.MkdirAll(lfs.path(name), mode)
}

func (lfs *LocalFileSystem) Open(ctx context.Context, name string) (fs.File, error) {
	f, err := lfs.fs.Open(lfs.path(name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadDir returns the entries of the directory sorted by name.  Symlinks are not followed.
func (lfs *LocalFileSystem) ReadDir(ctx context.Context, name string) ([]*fs.DirectoryEntry, error) {
	fileInfos, err := afero.ReadDir(lfs.fs, lfs.path(name))
	if err != nil {
		return nil, err
	}
	directoryEntries := make([]*fs.DirectoryEntry, 0, len(fileInfos))
	for _, fi := range fileInfos {
		directoryEntries = append(directoryEntries, fs.NewDirectoryEntryFromFileInfo(fi))
	}
	return directoryEntries, nil
}

func (lfs *LocalFileSystem) Readlink(ctx context.Context, name string) (string, error) {
	if reader, ok := lfs.links.(afero.LinkReader); ok {
		return reader.ReadlinkIfPossible(lfs.realPath(name))
	}
	return "", &os.PathError{Op: "readlink", Path: name, Err: fs.ErrNotSupported}
}

func (lfs *LocalFileSystem) Remove(ctx context.Context, name string) error {
	return lfs.fs.Remove(lfs.path(name))
}

func (lfs *LocalFileSystem) RemoveAll(ctx context.Context, name string) error {
	if lfs.path(name) == string(os.PathSeparator) {
		return fmt.Errorf("refusing to remove the root of %q", lfs.root)
	}
	return lfs.fs.RemoveAll(lfs.path(name))
}

func (lfs *LocalFileSystem) Root() string {
	return lfs.root
}

func (lfs *LocalFileSystem) Symlink(ctx context.Context, target string, name string) error {
	if linker, ok := lfs.links.(afero.Linker); ok {
		return linker.SymlinkIfPossible(target, lfs.realPath(name))
	}
	return &os.LinkError{Op: "symlink", Old: target, New: name, Err: fs.ErrNotSupported}
}

func (lfs *LocalFileSystem) SupportsPermissions() bool {
	return true
}

func (lfs *LocalFileSystem) SupportsSymlinks() bool {
	_, ok := lfs.links.(afero.Linker)
	return ok
}

// path returns the name as an absolute path within the afero file system.
func (lfs *LocalFileSystem) path(name string) string {
	return filepath.Join(string(os.PathSeparator), name)
}

// realPath returns the name as a path on the local disk.
func (lfs *LocalFileSystem) realPath(name string) string {
	return filepath.Join(lfs.root, lfs.path(name))
}

// NewLocalFileSystem returns a file system rooted at the directory on the local disk.
func NewLocalFileSystem(rootPath string) *LocalFileSystem {
	return &LocalFileSystem{
		root:  rootPath,
		fs:    afero.NewBasePathFs(afero.NewOsFs(), rootPath),
		links: afero.NewOsFs(),
	}
}

// NewFileSystem returns a file system backed by an arbitrary afero file system,
// e.g., afero.NewMemMapFs().  Symlinks are not supported.
func NewFileSystem(fs afero.Fs) *LocalFileSystem {
	return &LocalFileSystem{
		root: string(os.PathSeparator),
		fs:   fs,
	}
}
