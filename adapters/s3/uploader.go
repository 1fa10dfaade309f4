// Package s3 stores uploaded pictures in an S3-compatible bucket (AWS S3 or
// MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lborres/bantay/core"
)

const keyPrefix = "profile-pictures/"

var ErrBucketRequired = errors.New("s3 bucket is required")

// overridable in tests
var loadDefaultAWSConfig = config.LoadDefaultConfig

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket string
	Region string
	// Endpoint is the base endpoint of an S3-compatible service such as
	// MinIO. Empty uses AWS.
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base URL objects are reachable under. Defaults to
	// <Endpoint>/<Bucket> or the virtual-hosted AWS URL.
	PublicURL string
}

var _ core.Uploader = (*Uploader)(nil)

type Uploader struct {
	client    putObjectAPI
	bucket    string
	publicURL string
	now       func() time.Time
}

func New(ctx context.Context, c Config) (*Uploader, error) {
	if c.Bucket == "" {
		return nil, ErrBucketRequired
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newUploader(client, c), nil
}

func newUploader(client putObjectAPI, c Config) *Uploader {
	return &Uploader{
		client:    client,
		bucket:    c.Bucket,
		publicURL: publicURL(c),
		now:       time.Now,
	}
}

func publicURL(c Config) string {
	switch {
	case c.PublicURL != "":
		return strings.TrimRight(c.PublicURL, "/")
	case c.Endpoint != "":
		return strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	}
}

// Save uploads the file under a generated key and returns its public URL.
func (u *Uploader) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	key := keyPrefix + core.UploadName(file.Filename, u.now())
	in := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          src,
		ContentLength: aws.Int64(file.Size),
	}
	if ct := file.Header.Get("Content-Type"); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return u.publicURL + "/" + key, nil
}
