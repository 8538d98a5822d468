package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/benchtrack/pkg/config"
)

// Compile-time interface check.
var _ Backend = (*S3Backend)(nil)

// S3Backend stores the document as a single S3 object.
type S3Backend struct {
	log    logrus.FieldLogger
	cfg    *config.S3StorageConfig
	client *s3.Client
	limits Limits
}

// NewS3 creates an S3Backend. Concurrent writers are detected with
// conditional writes on the ETag.
func NewS3(log logrus.FieldLogger, cfg *config.S3StorageConfig, limits Limits) *S3Backend {
	return &S3Backend{
		log:    log.WithField("component", "storage-s3"),
		cfg:    cfg,
		client: newS3Client(cfg),
		limits: limits,
	}
}

func (b *S3Backend) Name() string {
	return "s3://" + b.cfg.Bucket + "/" + b.cfg.Key
}

// Preflight verifies the bucket is reachable with the configured
// credentials.
func (b *S3Backend) Preflight(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.cfg.Bucket),
	}); err != nil {
		return fmt.Errorf("checking access to s3://%s: %w", b.cfg.Bucket, err)
	}

	return nil
}

func (b *S3Backend) Read(ctx context.Context) (*Object, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.cfg.Key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", b.cfg.Key, err)
	}

	defer func() { _ = out.Body.Close() }()

	if out.ContentLength != nil {
		if err := checkSize(*out.ContentLength, b.limits.MaxDocumentSize); err != nil {
			return nil, err
		}
	}

	var body io.Reader = out.Body
	if b.limits.MaxDocumentSize > 0 {
		body = io.LimitReader(out.Body, b.limits.MaxDocumentSize+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", b.cfg.Key, err)
	}

	if err := checkSize(int64(len(data)), b.limits.MaxDocumentSize); err != nil {
		return nil, err
	}

	return &Object{Data: data, Version: aws.ToString(out.ETag)}, nil
}

func (b *S3Backend) Write(ctx context.Context, data []byte, version string) error {
	if err := checkSize(int64(len(data)), b.limits.MaxDocumentSize); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(b.cfg.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(b.cfg.Key)),
	}

	if version == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(version)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		if isS3Conflict(err) {
			return fmt.Errorf("%w: %s", ErrConflict, err.Error())
		}

		return fmt.Errorf("putting object %q: %w", b.cfg.Key, err)
	}

	b.log.WithFields(logrus.Fields{
		"bucket": b.cfg.Bucket,
		"key":    b.cfg.Key,
		"bytes":  len(data),
	}).Debug("Wrote document")

	return nil
}

func (b *S3Backend) Lock(_ context.Context) (func() error, error) {
	return func() error { return nil }, nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".js"):
		return "application/javascript"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

// isS3Conflict reports whether a conditional write lost a race. S3 answers
// If-Match against a missing key with NoSuchKey.
func isS3Conflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict", "NoSuchKey":
			return true
		}
	}

	return false
}

func newS3Client(cfg *config.S3StorageConfig) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
