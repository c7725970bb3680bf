package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	objects   map[string]int64 // key -> size
	headCalls int
	headErr   error
	listErr   error
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.headCalls++
	if f.headErr != nil {
		return nil, f.headErr
	}
	size, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(size)}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	prefix := aws.ToString(params.Prefix)
	out := &s3.ListObjectsV2Output{}
	for key, size := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out.Contents = append(out.Contents, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(size),
			})
		}
	}
	return out, nil
}

type fakeDownloader struct {
	payloads map[string][]byte // key -> body
	err      error
	calls    []string
}

func (f *fakeDownloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, _ ...func(*manager.Downloader)) (int64, error) {
	key := aws.ToString(input.Key)
	f.calls = append(f.calls, key)
	if f.err != nil {
		return 0, f.err
	}
	body := f.payloads[key]
	n, err := w.WriteAt(body, 0)
	return int64(n), err
}

func TestListReturnsSortedObjectsUnderPrefix(t *testing.T) {
	api := &fakeS3{objects: map[string]int64{
		"BlueTopo/BH4PS5C8/BlueTopo_BH4PS5C8_20240117.tiff":         1024,
		"BlueTopo/BH4PS5C8/BlueTopo_BH4PS5C8_20240117.tiff.aux.xml": 64,
		"BlueTopo/BH4PS5C9/BlueTopo_BH4PS5C9_20240117.tiff":         2048,
	}}
	client := NewClientWith(api, nil)

	objects, err := client.List(context.Background(), "raster-bucket", "BlueTopo/BH4PS5C8/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %+v", objects)
	}
	if objects[0].Key > objects[1].Key {
		t.Errorf("objects not sorted: %+v", objects)
	}
	if objects[0].Size != 1024 {
		t.Errorf("size not carried: %+v", objects[0])
	}
}

func TestListEmptyPrefixIsNotAnError(t *testing.T) {
	client := NewClientWith(&fakeS3{objects: map[string]int64{}}, nil)
	objects, err := client.List(context.Background(), "raster-bucket", "BlueTopo/BH4XXXXX/")
	if err != nil {
		t.Fatalf("empty prefix should not error: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("expected no objects, got %+v", objects)
	}
}

func TestLatestKeyPicksNewestPublication(t *testing.T) {
	api := &fakeS3{objects: map[string]int64{
		"BlueTopo/_BlueTopo_Tile_Scheme/BlueTopo_Tile_Scheme_20240101.json": 10,
		"BlueTopo/_BlueTopo_Tile_Scheme/BlueTopo_Tile_Scheme_20240301.json": 10,
	}}
	client := NewClientWith(api, nil)

	key, err := client.LatestKey(context.Background(), "raster-bucket", "BlueTopo/_BlueTopo_Tile_Scheme/")
	if err != nil {
		t.Fatalf("LatestKey: %v", err)
	}
	if key != "BlueTopo/_BlueTopo_Tile_Scheme/BlueTopo_Tile_Scheme_20240301.json" {
		t.Errorf("LatestKey = %q", key)
	}
}

func TestDownloadWritesTargetAndCreatesParents(t *testing.T) {
	dl := &fakeDownloader{payloads: map[string][]byte{
		"csb/csv/2019/02/22/a_pointData.csv": []byte("lat,lon,depth\n"),
	}}
	client := NewClientWith(&fakeS3{}, dl)

	target := filepath.Join(t.TempDir(), "dcdb", "Copper Star", "a_pointData.csv")
	if err := client.Download(context.Background(), "track-bucket", "csb/csv/2019/02/22/a_pointData.csv", target); err != nil {
		t.Fatalf("Download: %v", err)
	}
	payload, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "lat,lon,depth\n" {
		t.Errorf("payload = %q", payload)
	}
}

func TestDownloadFailureRemovesPartialFile(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("connection reset")}
	client := NewClientWith(&fakeS3{}, dl)

	target := filepath.Join(t.TempDir(), "tile.tiff")
	if err := client.Download(context.Background(), "raster-bucket", "BlueTopo/x/tile.tiff", target); err == nil {
		t.Fatal("expected download error")
	}
	if _, err := os.Stat(target); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial file left behind at %s", target)
	}
}

func TestResolverMemoizesProbes(t *testing.T) {
	api := &fakeS3{objects: map[string]int64{"csb/csv/2019/02/22/a_pointData.csv": 512}}
	resolver := NewResolver(api)

	for i := 0; i < 3; i++ {
		probe, err := resolver.Stat(context.Background(), "track-bucket", "csb/csv/2019/02/22/a_pointData.csv")
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if probe.Existence != ExistencePresent || probe.Size != 512 {
			t.Fatalf("probe = %+v", probe)
		}
	}
	if api.headCalls != 1 {
		t.Errorf("expected 1 HeadObject call, got %d", api.headCalls)
	}
}

func TestResolverTreats404AsAbsentNotError(t *testing.T) {
	resolver := NewResolver(&fakeS3{objects: map[string]int64{}})

	probe, err := resolver.Stat(context.Background(), "track-bucket", "csb/csv/2019/02/22/gone_pointData.csv")
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if probe.Existence != ExistenceAbsent {
		t.Errorf("probe = %+v", probe)
	}
}

func TestResolverWrapsOtherFailures(t *testing.T) {
	resolver := NewResolver(&fakeS3{headErr: errors.New("access denied")})

	_, err := resolver.Stat(context.Background(), "track-bucket", "csb/csv/2019/02/22/a_pointData.csv")
	var probeErr *ObjectProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected ObjectProbeError, got %v", err)
	}
	if probeErr.Bucket != "track-bucket" {
		t.Errorf("bucket = %q", probeErr.Bucket)
	}
}
