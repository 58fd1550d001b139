package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/pricearb/internal/domain"
)

const (
	// MultipartThreshold is the body size above which Put streams through
	// the upload manager instead of a single PutObject.
	MultipartThreshold = 16 << 20
	partSize           = 8 << 20
)

// Writer implements domain.BlobWriter on the archive bucket.
type Writer struct {
	client   *s3.Client
	bucket   string
	uploader *manager.Uploader
}

// NewWriter creates a Writer for c's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		client: c.S3(),
		bucket: c.Bucket(),
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
	}
}

// Put uploads obj. Daily logs of busy days exceed MultipartThreshold and go
// up in parts; reports and ordinary days use one request.
func (w *Writer) Put(ctx context.Context, obj domain.Object) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(obj.Key),
		Body:   bytes.NewReader(obj.Body),
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}

	if len(obj.Body) > MultipartThreshold {
		if _, err := w.uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("s3blob: multipart upload %s (%d bytes): %w", obj.Key, len(obj.Body), err)
		}
		return nil
	}

	input.ContentLength = aws.Int64(int64(len(obj.Body)))
	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", obj.Key, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
