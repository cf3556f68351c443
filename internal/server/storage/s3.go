// Package storage pushes local files to S3-compatible object storage and
// returns their durable public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/server/config"
	"github.com/google/uuid"
)

// PutObjectAPI is the part of *s3.Client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads files under a date-partitioned random key.
type S3Uploader struct {
	client        PutObjectAPI
	bucket        string
	publicBaseURL string
	timeout       time.Duration
	now           func() time.Time
}

// NewS3Uploader wraps an existing client. publicBaseURL is the prefix the
// object key is appended to when building the returned URL.
func NewS3Uploader(client PutObjectAPI, bucket, publicBaseURL string, timeout time.Duration) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		timeout:       timeout,
		now:           time.Now,
	}
}

// NewS3UploaderFromConfig builds a path-style S3 client with static
// credentials (MinIO-friendly) from the server config.
func NewS3UploaderFromConfig(ctx context.Context, c *config.Config) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	public := c.S3PublicBaseURL
	if public == "" {
		public = strings.TrimRight(c.S3BaseEndpoint, "/") + "/" + c.S3Bucket
	}

	return NewS3Uploader(client, c.S3Bucket, public, c.UploadTimeout), nil
}

// StorageKey returns a fresh object key such as
// "accounts/2026/10/18/<uuid>.png".
func StorageKey(now time.Time, ext string) string {
	return fmt.Sprintf("accounts/%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.New(), strings.ToLower(ext))
}

// Upload sends the file at localPath and returns its public URL. Every
// failure, including a missing path or the timeout elapsing, wraps
// common.ErrUpload. The caller owns localPath and its removal.
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("%w: empty local path", common.ErrUpload)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpload, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpload, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", common.ErrUpload, localPath)
	}

	contentType, err := sniffContentType(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	key := StorageKey(u.now(), filepath.Ext(localPath))

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: timed out after %s", common.ErrUpload, u.timeout)
		}
		return "", fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	return u.publicBaseURL + "/" + key, nil
}

// sniffContentType reads the file head and rewinds it.
func sniffContentType(f *os.File) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
