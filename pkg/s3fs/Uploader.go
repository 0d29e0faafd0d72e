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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Uploader buffers writes and uploads the object on Close.
// Once the buffer reaches the part size, the object is sent as a multipart upload.
type Uploader struct {
	ctx context.Context
	//
	acl              types.ObjectCannedACL
	client           Client
	bucket           *string
	bucketKeyEnabled bool
	key              *string
	metadata         map[string]string
	partSize         int
	//
	buffer         *bytes.Buffer
	uploadID       *string
	lastPartNumber int32
	etags          map[int32]*string
	closed         bool
}

func (u *Uploader) abort(err error) error {
	if u.uploadID == nil {
		return err
	}
	_, abortErr := u.client.AbortMultipartUpload(context.WithoutCancel(u.ctx), &s3.AbortMultipartUploadInput{
		Bucket:   u.bucket,
		Key:      u.key,
		UploadId: u.uploadID,
	})
	if abortErr != nil {
		return fmt.Errorf("error aborting multipart upload after %w: %w", err, abortErr)
	}
	return err
}

func (u *Uploader) uploadPart() error {
	// a read seeker is needed to rewind the body if the client retries
	reader := bytes.NewReader(u.buffer.Bytes())
	partNumber := u.lastPartNumber + 1
	uploadPartOutput, err := u.client.UploadPart(u.ctx, &s3.UploadPartInput{
		Body:          reader,
		Bucket:        u.bucket,
		Key:           u.key,
		PartNumber:    aws.Int32(partNumber),
		UploadId:      u.uploadID,
		ContentLength: aws.Int64(int64(reader.Len())),
	})
	if err != nil {
		return fmt.Errorf("error uploading part %d of %q: %w", partNumber, aws.ToString(u.key), err)
	}
	u.etags[partNumber] = uploadPartOutput.ETag
	u.lastPartNumber = partNumber
	u.buffer = bytes.NewBuffer([]byte{})
	return nil
}

func (u *Uploader) Close() error {
	if u.closed {
		return io.ErrUnexpectedEOF
	}

	u.closed = true

	// if upload hasn't started.
	if u.uploadID == nil {
		reader := bytes.NewReader(u.buffer.Bytes())
		_, err := u.client.PutObject(u.ctx, &s3.PutObjectInput{
			ACL:              u.acl,
			Body:             reader,
			Bucket:           u.bucket,
			BucketKeyEnabled: aws.Bool(u.bucketKeyEnabled),
			ContentLength:    aws.Int64(int64(reader.Len())),
			Key:              u.key,
			Metadata:         u.metadata,
		})
		if err != nil {
			return fmt.Errorf("error putting object %q: %w", aws.ToString(u.key), err)
		}
		u.buffer = bytes.NewBuffer([]byte{})
		return nil
	}

	// upload remaining bytes
	if u.buffer.Len() > 0 {
		if err := u.uploadPart(); err != nil {
			return u.abort(err)
		}
	}

	completedParts := []types.CompletedPart{}
	for i := int32(1); i <= u.lastPartNumber; i++ {
		completedParts = append(completedParts, types.CompletedPart{
			ETag:       u.etags[i],
			PartNumber: aws.Int32(i),
		})
	}

	_, err := u.client.CompleteMultipartUpload(u.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   u.bucket,
		Key:      u.key,
		UploadId: u.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return u.abort(fmt.Errorf("error completing multipart upload of %q: %w", aws.ToString(u.key), err))
	}
	return nil
}

func (u *Uploader) Write(p []byte) (int, error) {
	if u.closed {
		return 0, io.ErrUnexpectedEOF
	}

	n, err := u.buffer.Write(p)
	if err != nil {
		return 0, err
	}

	if u.buffer.Len() >= u.partSize {
		// If multipart upload hasn't been started yet, then create it.
		if u.uploadID == nil {
			createMultipartUploadOutput, err := u.client.CreateMultipartUpload(u.ctx, &s3.CreateMultipartUploadInput{
				ACL:              u.acl,
				Bucket:           u.bucket,
				BucketKeyEnabled: aws.Bool(u.bucketKeyEnabled),
				Key:              u.key,
				Metadata:         u.metadata,
			})
			if err != nil {
				return 0, fmt.Errorf("error creating multipart upload for %q: %w", aws.ToString(u.key), err)
			}
			u.uploadID = createMultipartUploadOutput.UploadId
		}
		if err := u.uploadPart(); err != nil {
			u.closed = true
			return 0, u.abort(err)
		}
	}

	return n, nil
}

type UploaderInput struct {
	ACL              types.ObjectCannedACL
	Client           Client
	Bucket           string
	BucketKeyEnabled bool
	Key              string
	Metadata         map[string]string
	PartSize         int
}

func NewUploader(ctx context.Context, input *UploaderInput) *Uploader {
	return &Uploader{
		ctx: ctx,
		//
		acl:              input.ACL,
		client:           input.Client,
		bucket:           aws.String(input.Bucket),
		bucketKeyEnabled: input.BucketKeyEnabled,
		key:              aws.String(input.Key),
		metadata:         input.Metadata,
		partSize:         input.PartSize,
		//
		buffer:         bytes.NewBuffer([]byte{}),
		uploadID:       nil,
		lastPartNumber: int32(0),
		etags:          map[int32]*string{},
		closed:         false,
	}
}
