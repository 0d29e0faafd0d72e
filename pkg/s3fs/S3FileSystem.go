// =================================================================
//
// Work of the U.S. Department of Defense, Defense Digital Service.
// Released as open source under the MIT License.  See LICENSE file.
//
// =================================================================

package s3fs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/navwar/bisync/pkg/fs"
)

const (
	// MetadataMode is the user metadata key holding the permission bits in octal.
	MetadataMode = "mode"
	// MetadataModTime is the user metadata key holding the modification time in RFC 3339 format.
	MetadataModTime = "mtime"
	// ModTimePrecision is the precision of modification times kept in metadata.
	ModTimePrecision = time.Millisecond

	DefaultFileMode      = os.FileMode(0644)
	DefaultDirectoryMode = os.FileMode(0755)
	DefaultPartSize      = 5 * 1024 * 1024
	DefaultMaxThreads    = 10

	modTimeLayout = "2006-01-02T15:04:05.000Z07:00"

	// maxDeleteObjects is the most keys a single DeleteObjects request accepts.
	maxDeleteObjects = 1000
)

// S3FileSystem is a file system rooted at a key prefix within an S3 bucket.
// Directories are key prefixes; an empty object whose key ends in "/" marks
// an empty directory and carries its mode.
type S3FileSystem struct {
	acl              types.ObjectCannedACL
	bucket           string
	bucketKeyEnabled bool
	client           Client
	maxThreads       int
	partSize         int
	prefix           string
}

// key returns the object key for the name.
func (s3fs *S3FileSystem) key(name string) string {
	rel := strings.Trim(path.Clean("/"+name), "/")
	if rel == "" {
		return s3fs.prefix
	}
	if s3fs.prefix == "" {
		return rel
	}
	return s3fs.prefix + "/" + rel
}

// dirKey returns the key prefix for objects within the named directory.
func (s3fs *S3FileSystem) dirKey(name string) string {
	k := s3fs.key(name)
	if k == "" {
		return ""
	}
	return k + "/"
}

func (s3fs *S3FileSystem) isRoot(name string) bool {
	return strings.Trim(path.Clean("/"+name), "/") == ""
}

func (s3fs *S3FileSystem) copySource(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return s3fs.bucket + "/" + strings.Join(segments, "/")
}

func (s3fs *S3FileSystem) headObject(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	return s3fs.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s3fs.bucket),
		Key:    aws.String(key),
	})
}

// updateMetadata rewrites the metadata of the object in place.  The object is
// left alone if update reports no change.
func (s3fs *S3FileSystem) updateMetadata(ctx context.Context, key string, update func(metadata map[string]string) bool) error {
	headObjectOutput, err := s3fs.headObject(ctx, key)
	if err != nil {
		return err
	}
	metadata := map[string]string{}
	for k, v := range headObjectOutput.Metadata {
		metadata[k] = v
	}
	if !update(metadata) {
		return nil
	}
	_, err = s3fs.client.CopyObject(ctx, &s3.CopyObjectInput{
		ACL:               s3fs.acl,
		Bucket:            aws.String(s3fs.bucket),
		BucketKeyEnabled:  aws.Bool(s3fs.bucketKeyEnabled),
		CopySource:        aws.String(s3fs.copySource(key)),
		Key:               aws.String(key),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return fmt.Errorf("error updating metadata of %q: %w", key, err)
	}
	return nil
}

func (s3fs *S3FileSystem) putMarker(ctx context.Context, name string, mode os.FileMode) error {
	_, err := s3fs.client.PutObject(ctx, &s3.PutObjectInput{
		ACL:              s3fs.acl,
		Body:             strings.NewReader(""),
		Bucket:           aws.String(s3fs.bucket),
		BucketKeyEnabled: aws.Bool(s3fs.bucketKeyEnabled),
		ContentLength:    aws.Int64(0),
		Key:              aws.String(s3fs.dirKey(name)),
		Metadata: map[string]string{
			MetadataMode: formatMode(mode),
		},
	})
	if err != nil {
		return fmt.Errorf("error creating directory marker for %q: %w", name, err)
	}
	return nil
}

func (s3fs *S3FileSystem) Chmod(ctx context.Context, name string, mode os.FileMode) error {
	if s3fs.isRoot(name) {
		return nil
	}
	err := s3fs.updateMetadata(ctx, s3fs.key(name), func(metadata map[string]string) bool {
		if str, ok := metadata[MetadataMode]; ok && str == formatMode(mode) {
			return false
		}
		metadata[MetadataMode] = formatMode(mode)
		return true
	})
	if err == nil || !s3fs.IsNotExist(err) {
		return err
	}
	// not an object, so record the mode on the directory marker
	entry, err := s3fs.Lstat(ctx, name)
	if err != nil {
		return err
	}
	if !entry.IsDir() {
		return fmt.Errorf("error changing mode of %q: unexpected entry type %s", name, entry.Type())
	}
	return s3fs.putMarker(ctx, name, mode)
}

// Chtimes sets the modification time of an object.  Directories have no
// modification time, so it is a no-op for them.
func (s3fs *S3FileSystem) Chtimes(ctx context.Context, name string, modTime time.Time) error {
	if s3fs.isRoot(name) {
		return nil
	}
	err := s3fs.updateMetadata(ctx, s3fs.key(name), func(metadata map[string]string) bool {
		if current, ok := metadata[MetadataModTime]; ok {
			if t, err := time.Parse(time.RFC3339Nano, current); err == nil && fs.EqualTimestamp(t, modTime, ModTimePrecision) {
				return false
			}
		}
		metadata[MetadataModTime] = formatModTime(modTime)
		return true
	})
	if err != nil && s3fs.IsNotExist(err) {
		if entry, lstatErr := s3fs.Lstat(ctx, name); lstatErr == nil && entry.IsDir() {
			return nil
		}
	}
	return err
}

// Create returns a file that uploads the object when closed.
func (s3fs *S3FileSystem) Create(ctx context.Context, name string, mode os.FileMode) (fs.File, error) {
	if s3fs.isRoot(name) {
		return nil, &os.PathError{Op: "create", Path: name, Err: os.ErrInvalid}
	}
	uploader := NewUploader(ctx, &UploaderInput{
		ACL:              s3fs.acl,
		Client:           s3fs.client,
		Bucket:           s3fs.bucket,
		BucketKeyEnabled: s3fs.bucketKeyEnabled,
		Key:              s3fs.key(name),
		Metadata: map[string]string{
			MetadataMode:    formatMode(mode),
			MetadataModTime: formatModTime(time.Now()),
		},
		PartSize: s3fs.partSize,
	})
	return NewS3File(name, nil, uploader), nil
}

func (s3fs *S3FileSystem) Dir(name string) string {
	return path.Dir(name)
}

func (s3fs *S3FileSystem) IsNotExist(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var responseError *awshttp.ResponseError
	if errors.As(err, &responseError) {
		return responseError.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

func (s3fs *S3FileSystem) Join(name ...string) string {
	return path.Join(name...)
}

// Lstat returns the entry for an object or a directory.  An object shadows
// a directory with the same name.
func (s3fs *S3FileSystem) Lstat(ctx context.Context, name string) (*fs.DirectoryEntry, error) {
	base := path.Base(path.Clean("/" + name))
	if s3fs.isRoot(name) {
		return fs.NewDirectoryEntry("/", fs.TypeDirectory, time.Time{}, 0, DefaultDirectoryMode), nil
	}

	headObjectOutput, err := s3fs.headObject(ctx, s3fs.key(name))
	if err == nil {
		return newFileEntry(base, headObjectOutput.Metadata, headObjectOutput.LastModified, aws.ToInt64(headObjectOutput.ContentLength)), nil
	}
	if !s3fs.IsNotExist(err) {
		return nil, fmt.Errorf("error heading object %q: %w", s3fs.key(name), err)
	}

	// directory marker
	headObjectOutput, err = s3fs.headObject(ctx, s3fs.dirKey(name))
	if err == nil {
		return newDirectoryEntry(base, headObjectOutput.Metadata), nil
	}
	if !s3fs.IsNotExist(err) {
		return nil, fmt.Errorf("error heading directory marker %q: %w", s3fs.dirKey(name), err)
	}

	// implicit directory
	listObjectsOutput, err := s3fs.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s3fs.bucket),
		MaxKeys: aws.Int32(1),
		Prefix:  aws.String(s3fs.dirKey(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("error listing objects with prefix %q: %w", s3fs.dirKey(name), err)
	}
	if len(listObjectsOutput.Contents) > 0 {
		return newDirectoryEntry(base, nil), nil
	}
	return nil, &os.PathError{Op: "lstat", Path: name, Err: os.ErrNotExist}
}

// MkdirAll creates a marker for the directory.  Parent directories are implied by the key.
func (s3fs *S3FileSystem) MkdirAll(ctx context.Context, name string, mode os.FileMode) error {
	if s3fs.isRoot(name) {
		return nil
	}
	_, err := s3fs.headObject(ctx, s3fs.dirKey(name))
	if err == nil {
		return nil
	}
	if !s3fs.IsNotExist(err) {
		return fmt.Errorf("error heading directory marker %q: %w", s3fs.dirKey(name), err)
	}
	return s3fs.putMarker(ctx, name, mode)
}

func (s3fs *S3FileSystem) Open(ctx context.Context, name string) (fs.File, error) {
	getObjectOutput, err := s3fs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s3fs.bucket),
		Key:    aws.String(s3fs.key(name)),
	})
	if err != nil {
		if s3fs.IsNotExist(err) {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
		}
		return nil, fmt.Errorf("error getting object %q: %w", s3fs.key(name), err)
	}
	return NewS3File(name, getObjectOutput.Body, nil), nil
}

// ReadDir returns the entries of the directory sorted by name.  The metadata
// of each entry is fetched concurrently.
func (s3fs *S3FileSystem) ReadDir(ctx context.Context, name string) ([]*fs.DirectoryEntry, error) {
	dirKey := s3fs.dirKey(name)

	files := []types.Object{}
	directories := []string{}

	paginator := s3.NewListObjectsV2Paginator(s3fs.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s3fs.bucket),
		Delimiter: aws.String("/"),
		Prefix:    aws.String(dirKey),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error listing objects with prefix %q: %w", dirKey, err)
		}
		for _, commonPrefix := range page.CommonPrefixes {
			directories = append(directories, aws.ToString(commonPrefix.Prefix))
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if key == dirKey || strings.HasSuffix(key, "/") {
				continue
			}
			files = append(files, object)
		}
	}

	directoryEntries := make([]*fs.DirectoryEntry, 0, len(files)+len(directories))
	var mutex sync.Mutex
	add := func(entry *fs.DirectoryEntry) {
		mutex.Lock()
		directoryEntries = append(directoryEntries, entry)
		mutex.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s3fs.maxThreads)
	for _, prefix := range directories {
		g.Go(func() error {
			base := path.Base(strings.TrimSuffix(prefix, "/"))
			headObjectOutput, err := s3fs.headObject(gctx, prefix)
			if err != nil {
				if s3fs.IsNotExist(err) {
					add(newDirectoryEntry(base, nil))
					return nil
				}
				return fmt.Errorf("error heading directory marker %q: %w", prefix, err)
			}
			add(newDirectoryEntry(base, headObjectOutput.Metadata))
			return nil
		})
	}
	for _, object := range files {
		g.Go(func() error {
			key := aws.ToString(object.Key)
			base := path.Base(key)
			headObjectOutput, err := s3fs.headObject(gctx, key)
			if err != nil {
				if s3fs.IsNotExist(err) {
					// deleted since listed
					return nil
				}
				return fmt.Errorf("error heading object %q: %w", key, err)
			}
			add(newFileEntry(base, headObjectOutput.Metadata, headObjectOutput.LastModified, aws.ToInt64(headObjectOutput.ContentLength)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(directoryEntries, func(i, j int) bool {
		return directoryEntries[i].Name() < directoryEntries[j].Name()
	})
	return directoryEntries, nil
}

func (s3fs *S3FileSystem) Readlink(ctx context.Context, name string) (string, error) {
	return "", &os.PathError{Op: "readlink", Path: name, Err: fs.ErrNotSupported}
}

func (s3fs *S3FileSystem) Remove(ctx context.Context, name string) error {
	_, err := s3fs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s3fs.bucket),
		Key:    aws.String(s3fs.key(name)),
	})
	if err != nil {
		return fmt.Errorf("error deleting object %q: %w", s3fs.key(name), err)
	}
	return nil
}

// RemoveAll deletes the object and every object beneath the directory with the same name.
func (s3fs *S3FileSystem) RemoveAll(ctx context.Context, name string) error {
	if s3fs.isRoot(name) {
		return fmt.Errorf("refusing to remove the root of %q", s3fs.Root())
	}

	dirKey := s3fs.dirKey(name)
	batches := [][]types.ObjectIdentifier{}
	batch := []types.ObjectIdentifier{}

	paginator := s3.NewListObjectsV2Paginator(s3fs.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s3fs.bucket),
		Prefix: aws.String(dirKey),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("error listing objects with prefix %q: %w", dirKey, err)
		}
		for _, object := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: object.Key})
			if len(batch) == maxDeleteObjects {
				batches = append(batches, batch)
				batch = []types.ObjectIdentifier{}
			}
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s3fs.maxThreads)
	for _, objects := range batches {
		g.Go(func() error {
			deleteObjectsOutput, err := s3fs.client.DeleteObjects(gctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s3fs.bucket),
				Delete: &types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("error deleting objects with prefix %q: %w", dirKey, err)
			}
			if len(deleteObjectsOutput.Errors) > 0 {
				first := deleteObjectsOutput.Errors[0]
				return fmt.Errorf(
					"error deleting %d objects with prefix %q: %q: %s",
					len(deleteObjectsOutput.Errors),
					dirKey,
					aws.ToString(first.Key),
					aws.ToString(first.Message))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return s3fs.Remove(ctx, name)
}

func (s3fs *S3FileSystem) Root() string {
	if s3fs.prefix == "" {
		return "s3://" + s3fs.bucket
	}
	return "s3://" + s3fs.bucket + "/" + s3fs.prefix
}

func (s3fs *S3FileSystem) Symlink(ctx context.Context, target string, name string) error {
	return &os.LinkError{Op: "symlink", Old: target, New: name, Err: fs.ErrNotSupported}
}

func (s3fs *S3FileSystem) SupportsPermissions() bool {
	return true
}

func (s3fs *S3FileSystem) SupportsSymlinks() bool {
	return false
}

func formatMode(mode os.FileMode) string {
	return "0" + strconv.FormatUint(uint64(mode.Perm()), 8)
}

func formatModTime(modTime time.Time) string {
	return modTime.UTC().Truncate(ModTimePrecision).Format(modTimeLayout)
}

func parseMode(metadata map[string]string, defaultMode os.FileMode) os.FileMode {
	if str, ok := metadata[MetadataMode]; ok {
		if mode, err := strconv.ParseUint(str, 8, 32); err == nil {
			return os.FileMode(mode).Perm()
		}
	}
	return defaultMode
}

func parseModTime(metadata map[string]string, lastModified *time.Time) time.Time {
	if str, ok := metadata[MetadataModTime]; ok {
		if modTime, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return modTime
		}
	}
	return aws.ToTime(lastModified)
}

func newFileEntry(name string, metadata map[string]string, lastModified *time.Time, size int64) *fs.DirectoryEntry {
	return fs.NewDirectoryEntry(
		name,
		fs.TypeFile,
		parseModTime(metadata, lastModified),
		size,
		parseMode(metadata, DefaultFileMode))
}

func newDirectoryEntry(name string, metadata map[string]string) *fs.DirectoryEntry {
	return fs.NewDirectoryEntry(name, fs.TypeDirectory, time.Time{}, 0, parseMode(metadata, DefaultDirectoryMode))
}

type NewS3FileSystemInput struct {
	ACL              types.ObjectCannedACL
	Bucket           string
	BucketKeyEnabled bool
	Client           Client
	MaxThreads       int
	PartSize         int
	Prefix           string
}

func NewS3FileSystem(input *NewS3FileSystemInput) *S3FileSystem {
	maxThreads := input.MaxThreads
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}
	partSize := input.PartSize
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	return &S3FileSystem{
		acl:              input.ACL,
		bucket:           input.Bucket,
		bucketKeyEnabled: input.BucketKeyEnabled,
		client:           input.Client,
		maxThreads:       maxThreads,
		partSize:         partSize,
		prefix:           strings.Trim(input.Prefix, "/"),
	}
}

var _ fs.FileSystem = (*S3FileSystem)(nil)
