package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/suvankar11223/chatzi-sub000/internal/config"
	"github.com/suvankar11223/chatzi-sub000/pkg/utils"
)

var ErrNotConfigured = errors.New("object storage is not configured")

// Folders used for uploads.
const (
	FolderAvatars     = "chatzi/avatars"
	FolderAttachments = "chatzi/attachments"
)

// Object describes a stored upload.
type Object struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}

// Putter is the subset of the S3 client used for uploads.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader stores files in an S3 compatible bucket (Cloudflare R2) and
// returns their public URL. Bytes are never inspected.
type Uploader struct {
	client    Putter
	bucket    string
	publicURL string
}

func NewUploader(client Putter, bucket, publicURL string) *Uploader {
	if publicURL == "" && bucket != "" {
		publicURL = fmt.Sprintf("https://%s.r2.dev", bucket)
	}
	return &Uploader{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}
}

// NewR2Client builds an S3 client pointed at the account's R2 endpoint.
func NewR2Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		return nil, ErrNotConfigured
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}

// Put uploads body under folder with a random key that keeps the file
// extension.
func (u *Uploader) Put(ctx context.Context, folder, filename, contentType string, size int64, body io.Reader) (*Object, error) {
	if u == nil || u.client == nil {
		return nil, ErrNotConfigured
	}

	key := fmt.Sprintf("%s/%s%s", folder, utils.GenerateID(), strings.ToLower(filepath.Ext(filename)))
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, err
	}

	return &Object{
		URL:      fmt.Sprintf("%s/%s", u.publicURL, key),
		Key:      key,
		MimeType: contentType,
		Size:     size,
	}, nil
}
