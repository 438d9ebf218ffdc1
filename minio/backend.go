// Package minio serves file devices from an S3-compatible object store through
// the MinIO client. Objects are downloaded whole when a handle opens them and
// uploaded when a handle that created or modified them closes.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/filedevice"
	"github.com/input-output-hk/catalyst-forge-libs/filedevice/internal/objfile"
)

var _ filedevice.Backend = (*Backend)(nil)

// Backend implements filedevice.Backend over a bucket.
type Backend struct {
	*objfile.Backend

	client *minio.Client
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

// WithTimeout bounds each call to the object store.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// New creates a backend serving objects of bucket.
func New(client *minio.Client, bucket string, opts ...Option) *Backend {
	o := &options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	s := &store{client: client, bucket: bucket}
	return &Backend{
		Backend: objfile.New("minio", s, o.prefix, o.timeout),
		client:  client,
		bucket:  bucket,
	}
}

// NewClient creates a MinIO client for endpoint authenticated with static
// credentials.
func NewClient(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: new client %q: %w", endpoint, err)
	}
	return client, nil
}

// Bucket returns the bucket the backend serves.
func (b *Backend) Bucket() string {
	return b.bucket
}

// Client returns the underlying MinIO client.
func (b *Backend) Client() *minio.Client {
	return b.client
}

// store adapts a MinIO client to objfile.Store.
type store struct {
	client *minio.Client
	bucket string
}

func (s *store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateError(err)
	}
	return data, nil
}

func (s *store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
		})
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (s *store) Stat(ctx context.Context, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, translateError(err)
	}
	return info.Size, nil
}

// translateError maps MinIO error responses onto io/fs sentinels, keeping the
// original error in the chain.
func translateError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w", fs.ErrPermission, err)
	default:
		return err
	}
}
