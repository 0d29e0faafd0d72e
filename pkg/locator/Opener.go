// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package locator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/lfs"
	"github.com/navwar/bisync/pkg/s3fs"
)

const (
	SchemeFile = "file://"
	SchemeS3   = "s3://"
)

// ClientFactory returns the S3 client used for the bucket.
type ClientFactory func(ctx context.Context, bucket string) (s3fs.Client, error)

// Opener opens the file system for a locator.  Locators are local paths,
// optionally with the file:// scheme, or s3://bucket/prefix URIs.
type Opener struct {
	acl              types.ObjectCannedACL
	bucketKeyEnabled bool
	clientFactory    ClientFactory
	maxThreads       int
	partSize         int
}

func (o *Opener) Open(ctx context.Context, locator string) (fs.FileSystem, error) {
	if strings.HasPrefix(locator, SchemeS3) {
		return o.openS3(ctx, locator)
	}
	return openLocal(locator)
}

func (o *Opener) openS3(ctx context.Context, locator string) (fs.FileSystem, error) {
	if o.clientFactory == nil {
		return nil, fmt.Errorf("cannot open %q: s3 is not configured", locator)
	}
	bucket, prefix, err := s3fs.ParseURI(locator)
	if err != nil {
		return nil, err
	}
	client, err := o.clientFactory(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("error creating client for bucket %q: %w", bucket, err)
	}
	return s3fs.NewS3FileSystem(&s3fs.NewS3FileSystemInput{
		ACL:              o.acl,
		Bucket:           bucket,
		BucketKeyEnabled: o.bucketKeyEnabled,
		Client:           client,
		MaxThreads:       o.maxThreads,
		PartSize:         o.partSize,
		Prefix:           prefix,
	}), nil
}

// LocalPath returns the absolute path of a local locator.
func LocalPath(locator string) (string, error) {
	p := strings.TrimPrefix(locator, SchemeFile)
	if p == "" {
		return "", fmt.Errorf("invalid locator %q: missing path", locator)
	}
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error resolving home directory for %q: %w", locator, err)
		}
		p = filepath.Join(home, p[2:])
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("error resolving absolute path for %q: %w", locator, err)
	}
	return abs, nil
}

func openLocal(locator string) (fs.FileSystem, error) {
	root, err := LocalPath(locator)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("error opening %q: %w", root, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("error opening %q: not a directory", root)
	}
	return lfs.NewLocalFileSystem(root), nil
}

// Check returns an error if the two locators overlap, since synchronizing a
// directory into itself would never terminate.
func Check(source string, destination string) error {
	sourceS3 := strings.HasPrefix(source, SchemeS3)
	destinationS3 := strings.HasPrefix(destination, SchemeS3)
	switch {
	case sourceS3 && destinationS3:
		sourceBucket, sourcePrefix, err := s3fs.ParseURI(source)
		if err != nil {
			return err
		}
		destinationBucket, destinationPrefix, err := s3fs.ParseURI(destination)
		if err != nil {
			return err
		}
		if sourceBucket != destinationBucket {
			return nil
		}
		return lfs.Check("/"+sourcePrefix, "/"+destinationPrefix)
	case sourceS3 || destinationS3:
		return nil
	}
	sourcePath, err := LocalPath(source)
	if err != nil {
		return err
	}
	destinationPath, err := LocalPath(destination)
	if err != nil {
		return err
	}
	return lfs.Check(sourcePath, destinationPath)
}

type NewOpenerInput struct {
	ACL              types.ObjectCannedACL
	BucketKeyEnabled bool
	ClientFactory    ClientFactory
	MaxThreads       int
	PartSize         int
}

func NewOpener(input *NewOpenerInput) *Opener {
	return &Opener{
		acl:              input.ACL,
		bucketKeyEnabled: input.BucketKeyEnabled,
		clientFactory:    input.ClientFactory,
		maxThreads:       input.MaxThreads,
		partSize:         input.PartSize,
	}
}

var _ fs.Opener = (*Opener)(nil)
