// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navwar/bisync/pkg/lfs"
	"github.com/navwar/bisync/pkg/s3fs"
)

func TestOpenLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opener := NewOpener(&NewOpenerInput{})

	for _, locator := range []string{dir, "file://" + dir} {
		fileSystem, err := opener.Open(ctx, locator)
		require.NoError(t, err)
		assert.IsType(t, &lfs.LocalFileSystem{}, fileSystem)
		assert.Equal(t, dir, fileSystem.Root())
	}

	_, err := opener.Open(ctx, filepath.Join(dir, "missing"))
	assert.Error(t, err)

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	_, err = opener.Open(ctx, file)
	assert.Error(t, err)

	_, err = opener.Open(ctx, "file://")
	assert.Error(t, err)
}

func TestOpenS3(t *testing.T) {
	ctx := context.Background()

	_, err := NewOpener(&NewOpenerInput{}).Open(ctx, "s3://bucket/prefix")
	assert.Error(t, err)

	buckets := []string{}
	opener := NewOpener(&NewOpenerInput{
		ClientFactory: func(ctx context.Context, bucket string) (s3fs.Client, error) {
			buckets = append(buckets, bucket)
			if bucket == "denied" {
				return nil, errors.New("access denied")
			}
			return nil, nil
		},
	})

	fileSystem, err := opener.Open(ctx, "s3://bucket/a/b/")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/a/b", fileSystem.Root())
	assert.False(t, fileSystem.SupportsSymlinks())

	_, err = opener.Open(ctx, "s3://denied")
	assert.Error(t, err)
	assert.Equal(t, []string{"bucket", "denied"}, buckets)
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("/tmp/a", "/tmp/b"))
	assert.Error(t, Check("/tmp/a", "file:///tmp/a"))
	assert.Error(t, Check("/tmp/a", "/tmp/a/b"))
	assert.NoError(t, Check("/tmp/a", "s3://bucket/tmp/a"))
	assert.NoError(t, Check("s3://one/a", "s3://two/a"))
	assert.Error(t, Check("s3://one/a", "s3://one/a/b"))
	assert.Error(t, Check("s3://one", "s3://one/a"))
	assert.NoError(t, Check("s3://one/a", "s3://one/b"))
}
