// Package archive reads the two public bathymetry S3 archives. Both buckets
// allow anonymous access, so the client is built with anonymous credentials
// and never consults local AWS configuration for identity.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/coastalgo/bathyfetch/internal/storage"
)

// ObjectInfo is one remote object: its full key and size in bytes.
type ObjectInfo struct {
	Key  string
	Size int64
}

// S3API is the slice of the S3 client the archive layer uses. *s3.Client
// satisfies it; tests substitute fakes.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Downloader is the transfer-manager surface the fetch path uses.
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

type Client struct {
	api        S3API
	downloader Downloader
}

// NewClient builds an anonymous S3 client for the given region.
func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("configure s3 client: %w", err)
	}
	s3Client := s3.NewFromConfig(cfg)
	return &Client{
		api:        s3Client,
		downloader: manager.NewDownloader(s3Client),
	}, nil
}

// NewClientWith wires explicit API implementations; used by tests.
func NewClientWith(api S3API, downloader Downloader) *Client {
	return &Client{api: api, downloader: downloader}
}

// List returns every object under prefix, sorted by key. An empty result is
// a valid answer (the prefix simply holds nothing), not an error.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	objects := []ObjectInfo{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			objects = append(objects, info)
		}
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// LatestKey returns the lexically greatest key under prefix, or "" when the
// prefix is empty. Archive objects embed dates in sortable form, so the
// greatest key is the newest publication.
func (c *Client) LatestKey(ctx context.Context, bucket, prefix string) (string, error) {
	objects, err := c.List(ctx, bucket, prefix)
	if err != nil {
		return "", err
	}
	if len(objects) == 0 {
		return "", nil
	}
	return objects[len(objects)-1].Key, nil
}

// Download fetches one object to target, creating parent directories as
// needed. A partially written file is removed on failure so the reconciler
// never mistakes it for a cached copy.
func (c *Client) Download(ctx context.Context, bucket, key, target string) error {
	if err := storage.EnsureDir(filepath.Dir(target)); err != nil {
		return err
	}
	file, err := os.Create(target)
	if err != nil {
		return &storage.IOError{Op: "create download target", Path: target, Err: err}
	}

	_, err = c.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
