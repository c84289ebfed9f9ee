package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zeebo/errs"
)

// MinioStore keeps objects in an S3-compatible bucket under a key prefix.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioStore(cfg S3Config, bucket, prefix string) (*MinioStore, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return NewMinioStoreWith(client, bucket, prefix), nil
}

// NewMinioStoreWith wraps an existing client.
func NewMinioStoreWith(client *minio.Client, bucket, prefix string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *MinioStore) object(key string) string {
	return strings.TrimPrefix(path.Join(s.prefix, key), "/")
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]Object, error) {
	full := s.object(prefix)
	var out []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
		if info.Err != nil {
			return nil, Error.Wrap(info.Err)
		}
		// "ratings" must not match "ratings_old.csv".
		if full != "" && info.Key != full && !strings.HasPrefix(info.Key, full+"/") {
			continue
		}
		if hiddenBelow(full, info.Key) {
			continue
		}
		out = append(out, Object{Key: s.relative(info.Key), Size: info.Size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MinioStore) relative(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

func (s *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, Error.Wrap(err)
	}
	return obj, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.object(key), r, size, minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	return Error.Wrap(err)
}

// RemovePrefix deletes every object under prefix. A listing failure is
// reported even when nothing was deleted.
func (s *MinioStore) RemovePrefix(ctx context.Context, prefix string) error {
	full := s.object(prefix)
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := make(chan minio.ObjectInfo)
	listed := make(chan struct{})
	var listErr error
	go func() {
		defer close(listed)
		defer close(objects)
		for info := range s.client.ListObjects(lctx, s.bucket, minio.ListObjectsOptions{Prefix: full, Recursive: true}) {
			if info.Err != nil {
				listErr = info.Err
				return
			}
			if full != "" && info.Key != full && !strings.HasPrefix(info.Key, full+"/") {
				continue
			}
			select {
			case objects <- info:
			case <-lctx.Done():
				listErr = lctx.Err()
				return
			}
		}
	}()

	var group errs.Group
	for rerr := range s.client.RemoveObjects(lctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		group.Add(rerr.Err)
	}
	cancel()
	<-listed
	if listErr == nil {
		// the listing may stop without an error once ctx is done
		listErr = ctx.Err()
	}
	if listErr != nil {
		group.Add(fmt.Errorf("list %s: %w", full, listErr))
	}
	return Error.Wrap(group.Err())
}

func (s *MinioStore) URL(key string) string {
	return "s3://" + s.bucket + "/" + s.object(key)
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
