// Package s3 serves file devices from an Amazon S3 bucket. Objects are
// downloaded whole when a handle opens them and uploaded when a handle that
// created or modified them closes.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/internal/objfile"
)

var _ filedevice.Backend = (*Backend)(nil)

// API is the subset of the S3 client the backend calls. *s3.Client
// satisfies it.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Backend implements filedevice.Backend over a bucket.
type Backend struct {
	*objfile.Backend

	api    API
	bucket string
}

type options struct {
	prefix  string
	timeout time.Duration
}

// Option is a functional option for configuring a Backend.
type Option func(*options)

// WithPrefix stores every object under prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTimeout bounds each call to S3.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// New creates a backend serving objects of bucket through api.
func New(api API, bucket string, opts ...Option) *Backend {
	o := &options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	return &Backend{
		Backend: objfile.New("s3", &store{api: api, bucket: bucket}, o.prefix, o.timeout),
		api:     api,
		bucket:  bucket,
	}
}

// NewFromConfig creates a backend using the default AWS configuration chain
// (environment, shared config, instance role).
func NewFromConfig(
	ctx context.Context,
	bucket string,
	optFns []func(*config.LoadOptions) error,
	opts ...Option,
) (*Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, opts...), nil
}

// Bucket returns the bucket the backend serves.
func (b *Backend) Bucket() string {
	return b.bucket
}

// store adapts an API to objfile.Store.
type store struct {
	api    API
	bucket string
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateError(err)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (s *store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (s *store) Stat(ctx context.Context, key string) (int64, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, translateError(err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// translateError maps S3 API errors onto io/fs sentinels, keeping the original
// error in the chain.
func translateError(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	case "AccessDenied", "Forbidden":
		return fmt.Errorf("%w: %w", fs.ErrPermission, err)
	default:
		return err
	}
}
