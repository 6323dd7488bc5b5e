package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Signed-URL lifetimes are a pure function of call site: gallery listings use
// the long expiry so browsers can cache, single-object reads the short one.
const (
	ListingExpiry = 24 * time.Hour
	ObjectExpiry  = time.Hour
)

// CacheForever is the cache directive attached to originals and thumbnails.
const CacheForever = "public, max-age=31536000, immutable"

var ErrExists = errors.New("object already exists")

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store wraps a MinIO client scoped to a single bucket.
type Store struct {
	client *minio.Client
	bucket string
	cache  *URLCache
}

func New(opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &Store{client: client, bucket: opts.Bucket}, nil
}

// WithURLCache attaches an optional signed-URL cache. A nil cache is allowed
// and leaves signing uncached.
func (s *Store) WithURLCache(cache *URLCache) *Store {
	s.cache = cache
	return s
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Put stores an object without overwriting: an existing object at the same
// path fails with ErrExists.
func (s *Store) Put(ctx context.Context, path string, data []byte, contentType, cacheControl string) error {
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err == nil {
		return ErrExists
	}
	if resp := minio.ToErrorResponse(err); resp.Code != "NoSuchKey" && resp.Code != "" && resp.StatusCode != 404 {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// SignedURL mints a time-limited read URL for the given object path.
func (s *Store) SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, path, expiry); ok {
			return cached, nil
		}
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", path, err)
	}
	signed := u.String()
	if s.cache != nil {
		s.cache.Set(ctx, path, expiry, signed)
	}
	return signed, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
