//go:build integration

package storage

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

func TestS3Upload(t *testing.T) {
	ctx := context.Background()

	container, err := localstack.Run(ctx, "localstack/localstack:3.8")
	require.NoError(t, err, "Failed to start localstack container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566/tcp")
	require.NoError(t, err)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("http://%s:%s", host, port.Port()))
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("wsu-pbl-team-1")})
	require.NoError(t, err)

	url, err := NewClient(client, "wsu-pbl-team-1").Upload(ctx, "팬케이크.pdf", []byte("%PDF-1.3 test"))
	require.NoError(t, err)
	assert.Equal(t, "https://wsu-pbl-team-1.s3.amazonaws.com/%ED%8C%AC%EC%BC%80%EC%9D%B4%ED%81%AC.pdf", url)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("wsu-pbl-team-1"),
		Key:    aws.String("팬케이크.pdf"),
	})
	require.NoError(t, err)
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(body))
	assert.Equal(t, "application/pdf", aws.ToString(out.ContentType))
}
