// Package s3 fetches dataset archives from an S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yuhaijun999/dingo-sdk/dataset/blobstore"
)

// NewClient builds an s3.Client from the ambient AWS configuration
// (environment, shared config/credentials files, EC2/ECS role), the way
// a caller pointing this loader at a real bucket rather than a
// pre-built test client normally would. optFns are forwarded to
// config.LoadDefaultConfig, e.g. config.WithRegion.
func NewClient(ctx context.Context, optFns ...func(*config.LoadOptions) error) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("blobstore/s3: loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Store implements blobstore.Store for S3.
type Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
	prefix     string
}

// NewStore builds a Store rooted at rootPrefix within bucket.
func NewStore(client *s3.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client:     client,
		downloader: manager.NewDownloader(client),
		bucket:     bucket,
		prefix:     rootPrefix,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open implements blobstore.Store.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, blobstore.ErrNotFound
		}
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &blob{downloader: s.downloader, bucket: s.bucket, key: key, size: aws.ToInt64(head.ContentLength)}, nil
}

// List implements blobstore.Store.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)
	var names []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			names = append(names, stripPrefix(aws.ToString(obj.Key), s.prefix))
		}
	}

	sort.Strings(names)
	return names, nil
}

func stripPrefix(key, prefix string) string {
	if len(prefix) > 0 && len(key) > len(prefix) && key[:len(prefix)] == prefix {
		rel := key[len(prefix):]
		if len(rel) > 0 && rel[0] == '/' {
			rel = rel[1:]
		}
		return rel
	}
	return key
}

type blob struct {
	downloader *manager.Downloader
	bucket     string
	key        string
	size       int64
}

func (b *blob) Close() error { return nil }
func (b *blob) Size() int64  { return b.size }

// ReadAt satisfies io.ReaderAt via the S3 transfer manager's Downloader,
// which retries a ranged GET on transient failure instead of failing the
// whole read the way a single GetObject call would.
func (b *blob) ReadAt(p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	if end >= b.size {
		end = b.size - 1
	}
	want := end - off + 1

	buf := manager.NewWriteAtBuffer(make([]byte, want))
	n, err := b.downloader.Download(context.Background(), buf, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, err
	}
	copy(p, buf.Bytes())
	if n < want {
		return int(n), io.EOF
	}
	return int(n), nil
}
