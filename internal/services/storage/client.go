package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/socialchef/recipewizard/internal/errors"
	"github.com/socialchef/recipewizard/internal/metrics"
)

const pdfContentType = "application/pdf"

// S3API is the subset of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Client struct {
	s3     S3API
	bucket string
}

func NewClient(s3Client S3API, bucket string) *Client {
	return &Client{s3: s3Client, bucket: bucket}
}

// Upload stores body under fileName in a single PutObject and returns the
// public URL of the object. The URL is computed, not read back.
func (c *Client) Upload(ctx context.Context, fileName string, body []byte) (string, error) {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(fileName),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(pdfContentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", apperrors.NewUploadError(
			fmt.Sprintf("failed to upload %q", fileName),
			"UPLOAD_FAILED", err)
	}

	metrics.ArtifactBytes.Record(ctx, int64(len(body)),
		metric.WithAttributes(attribute.String("content_type", pdfContentType)))

	publicURL := c.PublicURL(fileName)
	slog.InfoContext(ctx, "Artifact uploaded", "bucket", c.bucket, "key", fileName, "url", publicURL)
	return publicURL, nil
}

// PublicURL is the virtual-hosted style URL of an object in the bucket.
func (c *Client) PublicURL(fileName string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.bucket, url.PathEscape(fileName))
}
