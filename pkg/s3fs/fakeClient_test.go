// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package s3fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data     []byte
	metadata map[string]string
	modified time.Time
}

type fakeUpload struct {
	key      string
	metadata map[string]string
	parts    map[int32][]byte
}

// fakeClient is an in-memory bucket.
type fakeClient struct {
	mutex   sync.Mutex
	objects map[string]*fakeObject
	uploads map[string]*fakeUpload
	calls   map[string]int
	next    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: map[string]*fakeObject{},
		uploads: map[string]*fakeUpload{},
		calls:   map[string]int{},
	}
}

func (c *fakeClient) count(op string) {
	c.calls[op]++
}

func (c *fakeClient) put(key string, data string, metadata map[string]string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.objects[key] = &fakeObject{data: []byte(data), metadata: metadata, modified: time.Now()}
}

func (c *fakeClient) keys() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	keys := make([]string, 0, len(c.objects))
	for k := range c.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMetadata(metadata map[string]string) map[string]string {
	m := map[string]string{}
	for k, v := range metadata {
		m[k] = v
	}
	return m
}

func (c *fakeClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("ListObjectsV2")
	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)
	keys := []string{}
	for k := range c.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	output := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seen := map[string]bool{}
	for _, k := range keys {
		if params.MaxKeys != nil && int32(len(output.Contents)+len(output.CommonPrefixes)) >= *params.MaxKeys {
			break
		}
		rest := strings.TrimPrefix(k, prefix)
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				commonPrefix := prefix + rest[:i+len(delimiter)]
				if !seen[commonPrefix] {
					seen[commonPrefix] = true
					output.CommonPrefixes = append(output.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(commonPrefix)})
				}
				continue
			}
		}
		object := c.objects[k]
		output.Contents = append(output.Contents, types.Object{
			Key:          aws.String(k),
			LastModified: aws.Time(object.modified),
			Size:         aws.Int64(int64(len(object.data))),
		})
	}
	output.KeyCount = aws.Int32(int32(len(output.Contents) + len(output.CommonPrefixes)))
	return output, nil
}

func (c *fakeClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("HeadObject")
	object, ok := c.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(object.data))),
		LastModified:  aws.Time(object.modified),
		Metadata:      copyMetadata(object.metadata),
	}, nil
}

func (c *fakeClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("GetObject")
	object, ok := c.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte{}, object.data...))),
		ContentLength: aws.Int64(int64(len(object.data))),
		Metadata:      copyMetadata(object.metadata),
	}, nil
}

func (c *fakeClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("PutObject")
	c.objects[aws.ToString(params.Key)] = &fakeObject{data: data, metadata: copyMetadata(params.Metadata), modified: time.Now()}
	return &s3.PutObjectOutput{}, nil
}

func (c *fakeClient) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("CopyObject")
	source, err := url.PathUnescape(aws.ToString(params.CopySource))
	if err != nil {
		return nil, err
	}
	_, sourceKey, _ := strings.Cut(source, "/")
	object, ok := c.objects[sourceKey]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	metadata := copyMetadata(object.metadata)
	if params.MetadataDirective == types.MetadataDirectiveReplace {
		metadata = copyMetadata(params.Metadata)
	}
	c.objects[aws.ToString(params.Key)] = &fakeObject{data: object.data, metadata: metadata, modified: time.Now()}
	return &s3.CopyObjectOutput{}, nil
}

func (c *fakeClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("DeleteObject")
	delete(c.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (c *fakeClient) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("DeleteObjects")
	for _, object := range params.Delete.Objects {
		delete(c.objects, aws.ToString(object.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (c *fakeClient) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("CreateMultipartUpload")
	c.next++
	uploadID := fmt.Sprintf("upload-%d", c.next)
	c.uploads[uploadID] = &fakeUpload{
		key:      aws.ToString(params.Key),
		metadata: copyMetadata(params.Metadata),
		parts:    map[int32][]byte{},
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(uploadID)}, nil
}

func (c *fakeClient) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("UploadPart")
	upload, ok := c.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, fmt.Errorf("no such upload %q", aws.ToString(params.UploadId))
	}
	partNumber := aws.ToInt32(params.PartNumber)
	upload.parts[partNumber] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", partNumber))}, nil
}

func (c *fakeClient) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("CompleteMultipartUpload")
	upload, ok := c.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, fmt.Errorf("no such upload %q", aws.ToString(params.UploadId))
	}
	data := []byte{}
	for _, part := range params.MultipartUpload.Parts {
		data = append(data, upload.parts[aws.ToInt32(part.PartNumber)]...)
	}
	c.objects[upload.key] = &fakeObject{data: data, metadata: upload.metadata, modified: time.Now()}
	delete(c.uploads, aws.ToString(params.UploadId))
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (c *fakeClient) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.count("AbortMultipartUpload")
	delete(c.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

var _ Client = (*fakeClient)(nil)
