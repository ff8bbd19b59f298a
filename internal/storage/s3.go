package storage

import (
	"context"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/muandane/special-stack/reslib/internal/config"
	"github.com/muandane/special-stack/reslib/internal/resource"
)

// NewClient creates a MinIO client for the configured endpoint.
func NewClient(cfg *config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "creating object storage client for %s", cfg.Endpoint)
	}
	return client, nil
}

// BucketSource serves a webapp root stored in a bucket. Webapp paths map to
// object keys below prefix, e.g. "/resources/app.js" to "site/resources/app.js".
type BucketSource struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ resource.Source = (*BucketSource)(nil)

func NewBucketSource(client *minio.Client, bucket, prefix string) *BucketSource {
	return &BucketSource{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// objectKey maps a webapp path to its object key.
func (s *BucketSource) objectKey(p string) string {
	return s.prefix + strings.TrimPrefix(path.Clean("/"+p), "/")
}

// dirKey maps a webapp directory to the key prefix of its children.
func (s *BucketSource) dirKey(p string) string {
	key := s.objectKey(p)
	if key == "" || strings.HasSuffix(key, "/") {
		return key
	}
	return key + "/"
}

// webappPath maps an object key back to an absolute webapp path.
func (s *BucketSource) webappPath(key string) (string, bool) {
	rel, ok := strings.CutPrefix(key, s.prefix)
	if !ok || rel == "" {
		return "", false
	}
	return "/" + rel, true
}

func (s *BucketSource) Exists(ctx context.Context, p string) (bool, error) {
	if key := s.objectKey(p); key != "" && key != s.prefix {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return true, nil
		}
		if !isNotFound(err) {
			return false, errors.Annotatef(err, "stat %s", key)
		}
	}

	// Directories exist only as key prefixes.
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:  s.dirKey(p),
		MaxKeys: 1,
	}) {
		if obj.Err != nil {
			return false, errors.Annotatef(obj.Err, "listing %s", p)
		}
		return true, nil
	}
	return false, nil
}

func (s *BucketSource) List(ctx context.Context, p string) ([]string, error) {
	dir := s.dirKey(p)
	var children []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: dir}) {
		if obj.Err != nil {
			if isNotFound(obj.Err) {
				return nil, nil
			}
			return nil, errors.Annotatef(obj.Err, "listing %s", p)
		}
		if obj.Key == dir {
			continue
		}
		if child, ok := s.webappPath(obj.Key); ok {
			children = append(children, child)
		}
	}
	return children, nil
}

func (s *BucketSource) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key := s.objectKey(p)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError("open", p, err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, s.mapError("open", p, err)
	}
	return obj, nil
}

// OpenReaderAt returns the object for ranged reads.
func (s *BucketSource) OpenReaderAt(ctx context.Context, p string) (resource.ReadAtCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(p), minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, s.mapError("open", p, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, s.mapError("open", p, err)
	}
	return obj, info.Size, nil
}

func (s *BucketSource) Stat(ctx context.Context, p string) (resource.FileStat, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.objectKey(p), minio.StatObjectOptions{})
	if err != nil {
		return resource.FileStat{Size: -1}, s.mapError("stat", p, err)
	}
	return resource.FileStat{ModTime: info.LastModified, Size: info.Size}, nil
}

func (s *BucketSource) URL(p string) (*url.URL, error) {
	u := *s.client.EndpointURL()
	u.Path = "/" + s.bucket + "/" + s.objectKey(p)
	return &u, nil
}

// Ping reports whether the bucket is reachable.
func (s *BucketSource) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Annotatef(err, "checking bucket %s", s.bucket)
	}
	if !ok {
		return errors.NotFoundf("bucket %s", s.bucket)
	}
	return nil
}

func (s *BucketSource) mapError(op, p string, err error) error {
	if isNotFound(err) {
		return &fs.PathError{Op: op, Path: p, Err: fs.ErrNotExist}
	}
	return errors.Annotatef(err, "%s %s", op, p)
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
