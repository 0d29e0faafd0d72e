// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package fs_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/lfs"
)

func TestCopy(t *testing.T) {
	ctx := context.Background()
	source := afero.NewMemMapFs()
	destination := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(source, "/a/b.txt", []byte("hello world"), 0644))

	modTime := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	written, err := fs.Copy(ctx, &fs.CopyInput{
		SourceName:            "a/b.txt",
		SourceFileSystem:      lfs.NewFileSystem(source),
		DestinationName:       "x/y/b.txt",
		DestinationFileSystem: lfs.NewFileSystem(destination),
		Mode:                  0600,
		ModTime:               modTime,
		MakeParents:           true,
		Logger:                fs.Discard,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), written)

	data, err := afero.ReadFile(destination, "/x/y/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	fi, err := destination.Stat("/x/y/b.txt")
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(modTime))
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestCopyMissingParent(t *testing.T) {
	ctx := context.Background()
	source := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(source, "/a.txt", []byte("a"), 0644))

	_, err := fs.Copy(ctx, &fs.CopyInput{
		SourceName:            "missing.txt",
		SourceFileSystem:      lfs.NewFileSystem(source),
		DestinationName:       "a.txt",
		DestinationFileSystem: lfs.NewFileSystem(afero.NewMemMapFs()),
	})
	assert.Error(t, err)
}

func TestEqualTimestamp(t *testing.T) {
	a := time.Date(2022, 1, 1, 0, 0, 0, 100, time.UTC)
	b := time.Date(2022, 1, 1, 0, 0, 0, 900, time.UTC)
	assert.True(t, fs.EqualTimestamp(a, b, time.Second))
	assert.False(t, fs.EqualTimestamp(a, b, time.Nanosecond))
}

func TestSmallTime(t *testing.T) {
	a := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, fs.SmallTime(a, a, time.Second))
	assert.True(t, fs.SmallTime(a, a.Add(999*time.Millisecond), time.Second))
	assert.True(t, fs.SmallTime(a.Add(999*time.Millisecond), a, time.Second))
	assert.False(t, fs.SmallTime(a, a.Add(time.Second), time.Second))
	assert.False(t, fs.SmallTime(a.Add(-2*time.Second), a, time.Second))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, fs.TypeFile, fs.TypeOf(0644))
	assert.Equal(t, fs.TypeDirectory, fs.TypeOf(os.ModeDir|0755))
	assert.Equal(t, fs.TypeSymlink, fs.TypeOf(os.ModeSymlink|0777))
	assert.Equal(t, fs.TypeOther, fs.TypeOf(os.ModeNamedPipe|0644))
	assert.Equal(t, "symlink", fs.TypeSymlink.String())
}
