package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/xid"

	"github.com/sakif/streamhub/internal/apperror"
	"github.com/sakif/streamhub/internal/config"
)

// S3Store uploads media to an S3-compatible bucket. A custom BaseEndpoint
// supports MinIO-style self-hosted deployments.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Store builds the S3 client from static credentials in cfg.
func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("storage: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.S3PublicURL
	if publicURL == "" {
		publicURL = strings.TrimSuffix(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Upload stores the file at localPath under a dated key and returns its
// public URL. The local file is removed when the upload fails; a failed
// request must not leak temp files.
func (s *S3Store) Upload(ctx context.Context, localPath string) (*UploadResult, error) {
	if localPath == "" {
		return nil, apperror.ValidationFailed("file", "file path is empty")
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, apperror.Upstream("could not read uploaded file", err)
	}
	defer file.Close()

	key := storageKey(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		file.Close()
		os.Remove(localPath)
		return nil, apperror.Upstream("media upload failed", err)
	}

	return &UploadResult{
		URL: s.publicURL + "/" + key,
		Key: key,
	}, nil
}

// storageKey builds a dated, collision-free object key, keeping the
// original file extension so browsers infer the content type.
func storageKey(localPath string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("media/%d/%02d/%s%s", now.Year(), now.Month(), xid.New().String(), filepath.Ext(localPath))
}
