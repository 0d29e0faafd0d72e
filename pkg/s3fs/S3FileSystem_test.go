// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package s3fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navwar/bisync/pkg/engine"
	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/lfs"
	"github.com/navwar/bisync/pkg/rules"
)

func newTestFileSystem(client *fakeClient, partSize int) *S3FileSystem {
	return NewS3FileSystem(&NewS3FileSystemInput{
		Bucket:   "bucket",
		Client:   client,
		PartSize: partSize,
		Prefix:   "/root/",
	})
}

func writeObject(t *testing.T, s3fs *S3FileSystem, name string, content string, mode os.FileMode) {
	t.Helper()
	ctx := context.Background()
	f, err := s3fs.Create(ctx, name, mode)
	require.NoError(t, err)
	_, err = io.WriteString(f, content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readObject(t *testing.T, s3fs *S3FileSystem, name string) string {
	t.Helper()
	f, err := s3fs.Open(context.Background(), name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestS3FileSystemRoot(t *testing.T) {
	s3fs := newTestFileSystem(newFakeClient(), 0)
	assert.Equal(t, "s3://bucket/root", s3fs.Root())
	assert.Equal(t, "root/a/b", s3fs.key("a/b"))
	assert.Equal(t, "root/a/b", s3fs.key("/a/b/"))
	assert.Equal(t, "root", s3fs.key(""))
	assert.Equal(t, "root/a/", s3fs.dirKey("a"))
	assert.Equal(t, "a/b", s3fs.Join("a", "b"))
	assert.Equal(t, "a", s3fs.Dir("a/b"))

	bare := NewS3FileSystem(&NewS3FileSystemInput{Bucket: "bucket", Client: newFakeClient()})
	assert.Equal(t, "s3://bucket", bare.Root())
	assert.Equal(t, "a", bare.key("a"))
	assert.Equal(t, "", bare.dirKey(""))
}

func TestS3FileSystemCreate(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s3fs := newTestFileSystem(client, 0)

	writeObject(t, s3fs, "a/b.txt", "hello", 0600)
	assert.Equal(t, []string{"root/a/b.txt"}, client.keys())
	assert.Equal(t, "hello", readObject(t, s3fs, "a/b.txt"))

	entry, err := s3fs.Lstat(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", entry.Name())
	assert.Equal(t, fs.TypeFile, entry.Type())
	assert.Equal(t, int64(5), entry.Size())
	assert.Equal(t, os.FileMode(0600), entry.Mode())

	modTime := time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC)
	require.NoError(t, s3fs.Chtimes(ctx, "a/b.txt", modTime))
	require.NoError(t, s3fs.Chmod(ctx, "a/b.txt", 0640))

	entry, err = s3fs.Lstat(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.True(t, entry.ModTime().Equal(modTime.Truncate(ModTimePrecision)))
	assert.True(t, fs.EqualTimestamp(entry.ModTime(), modTime, ModTimePrecision))
	assert.Equal(t, os.FileMode(0640), entry.Mode())
	assert.Equal(t, "hello", readObject(t, s3fs, "a/b.txt"))
}

func TestS3FileSystemMetadataUnchanged(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s3fs := newTestFileSystem(client, 0)

	writeObject(t, s3fs, "a.txt", "hello", 0644)
	modTime := time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC)

	require.NoError(t, s3fs.Chtimes(ctx, "a.txt", modTime))
	assert.Equal(t, 1, client.calls["CopyObject"])

	// same time within the stored precision
	require.NoError(t, s3fs.Chtimes(ctx, "a.txt", modTime.Add(100*time.Microsecond)))
	assert.Equal(t, 1, client.calls["CopyObject"])

	require.NoError(t, s3fs.Chtimes(ctx, "a.txt", modTime.Add(time.Second)))
	assert.Equal(t, 2, client.calls["CopyObject"])

	require.NoError(t, s3fs.Chmod(ctx, "a.txt", 0644))
	assert.Equal(t, 2, client.calls["CopyObject"])
	require.NoError(t, s3fs.Chmod(ctx, "a.txt", 0600))
	assert.Equal(t, 3, client.calls["CopyObject"])
}

func TestS3FileSystemMultipartUpload(t *testing.T) {
	client := newFakeClient()
	s3fs := newTestFileSystem(client, 4)

	writeObject(t, s3fs, "big.bin", "0123456789", 0644)
	assert.Equal(t, "0123456789", readObject(t, s3fs, "big.bin"))
	assert.Equal(t, 1, client.calls["CreateMultipartUpload"])
	assert.Equal(t, 3, client.calls["UploadPart"])
	assert.Equal(t, 0, client.calls["PutObject"])

	entry, err := s3fs.Lstat(context.Background(), "big.bin")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), entry.Mode())
}

func TestS3FileSystemDirectories(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s3fs := newTestFileSystem(client, 0)

	client.put("root/a.txt", "a", nil)
	client.put("root/implicit/b.txt", "b", nil)
	client.put("root/implicit/deeper/c.txt", "c", nil)
	client.put("rootless.txt", "x", nil)
	require.NoError(t, s3fs.MkdirAll(ctx, "empty", 0700))

	entry, err := s3fs.Lstat(ctx, "implicit")
	require.NoError(t, err)
	assert.True(t, entry.IsDir())
	assert.Equal(t, DefaultDirectoryMode, entry.Mode())

	entry, err = s3fs.Lstat(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, entry.IsDir())
	assert.Equal(t, os.FileMode(0700), entry.Mode())

	entry, err = s3fs.Lstat(ctx, "")
	require.NoError(t, err)
	assert.True(t, entry.IsDir())

	_, err = s3fs.Lstat(ctx, "missing")
	require.Error(t, err)
	assert.True(t, s3fs.IsNotExist(err))

	entries, err := s3fs.ReadDir(ctx, "")
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"a.txt", "empty", "implicit"}, names)
	assert.Equal(t, fs.TypeFile, entries[0].Type())
	assert.Equal(t, os.FileMode(0700), entries[1].Mode())
	assert.True(t, entries[2].IsDir())

	entries, err = s3fs.ReadDir(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, s3fs.Chmod(ctx, "implicit", 0750))
	entry, err = s3fs.Lstat(ctx, "implicit")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0750), entry.Mode())
	require.NoError(t, s3fs.Chtimes(ctx, "implicit", time.Now()))
}

func TestS3FileSystemRemove(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s3fs := newTestFileSystem(client, 0)

	client.put("root/a.txt", "a", nil)
	client.put("root/dir/", "", nil)
	for i := 0; i < 5; i++ {
		client.put(fmt.Sprintf("root/dir/%d.txt", i), "x", nil)
	}
	client.put("root/dir/sub/c.txt", "c", nil)
	client.put("root/dirt.txt", "d", nil)

	require.NoError(t, s3fs.Remove(ctx, "a.txt"))
	require.NoError(t, s3fs.RemoveAll(ctx, "dir"))
	assert.Equal(t, []string{"root/dirt.txt"}, client.keys())
	assert.Equal(t, 1, client.calls["DeleteObjects"])

	assert.Error(t, s3fs.RemoveAll(ctx, ""))
	assert.Equal(t, []string{"root/dirt.txt"}, client.keys())
}

func TestS3FileSystemNotSupported(t *testing.T) {
	ctx := context.Background()
	s3fs := newTestFileSystem(newFakeClient(), 0)
	assert.True(t, s3fs.SupportsPermissions())
	assert.False(t, s3fs.SupportsSymlinks())
	_, err := s3fs.Readlink(ctx, "link")
	assert.True(t, errors.Is(err, fs.ErrNotSupported))
	err = s3fs.Symlink(ctx, "target", "link")
	assert.True(t, errors.Is(err, fs.ErrNotSupported))

	_, err = s3fs.Open(ctx, "missing.txt")
	require.Error(t, err)
	assert.True(t, s3fs.IsNotExist(err))
}

func TestS3FileSystemSynchronize(t *testing.T) {
	ctx := context.Background()
	source := afero.NewMemMapFs()
	client := newFakeClient()
	modTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for name, content := range map[string]string{
		"/a.txt":       "hello",
		"/dir/b.txt":   "world",
		"/dir/c/d.txt": "!",
	} {
		require.NoError(t, afero.WriteFile(source, name, []byte(content), 0644))
		require.NoError(t, source.Chtimes(name, modTime, modTime))
	}

	systems := map[string]fs.FileSystem{
		"local":            lfs.NewFileSystem(source),
		"s3://bucket/root": newTestFileSystem(client, 0),
	}
	e := engine.New(&engine.NewInput{
		Opener: fs.OpenerFunc(func(ctx context.Context, locator string) (fs.FileSystem, error) {
			return systems[locator], nil
		}),
	})
	j := job.New("local", "s3://bucket/root", rules.NewLayer("base", rules.Include), "backup")

	report, err := e.Run(ctx, j, []string{}, false)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 5, report.Copied)
	assert.Contains(t, client.keys(), "root/dir/c/d.txt")

	s3fs := systems["s3://bucket/root"].(*S3FileSystem)
	assert.Equal(t, "world", readObject(t, s3fs, "dir/b.txt"))
	entry, err := s3fs.Lstat(ctx, "dir/b.txt")
	require.NoError(t, err)
	assert.True(t, entry.ModTime().Equal(modTime))

	report, err = e.Run(ctx, j, []string{}, false)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 0, report.Copied+report.Updated+report.Removed)
	assert.Equal(t, 3, report.Unchanged)
}
