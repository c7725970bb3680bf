package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Existence is the answer to an object probe.
type Existence int

const (
	ExistencePresent Existence = iota
	ExistenceAbsent
)

// Probe is the memoized result of one HeadObject call.
type Probe struct {
	Existence Existence
	Size      int64
}

// ObjectProbeError reports a probe failure other than a plain 404. The 404
// case is a normal answer (the catalog routinely references objects the
// archive no longer holds); anything else means the archive cannot be
// trusted for the rest of the run.
type ObjectProbeError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *ObjectProbeError) Error() string {
	return fmt.Sprintf("probe s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *ObjectProbeError) Unwrap() error { return e.Err }

// Resolver answers object-existence questions with per-key memoization, so a
// candidate set that names the same key twice probes it once.
type Resolver struct {
	api    S3API
	probes map[string]Probe
}

func NewResolver(api S3API) *Resolver {
	return &Resolver{api: api, probes: map[string]Probe{}}
}

// Resolver returns a fresh per-run resolver over the client's API.
func (c *Client) Resolver() *Resolver {
	return NewResolver(c.api)
}

// Stat probes one object. A 404 yields ExistenceAbsent with a nil error.
func (r *Resolver) Stat(ctx context.Context, bucket, key string) (Probe, error) {
	cacheKey := bucket + "/" + key
	if probe, ok := r.probes[cacheKey]; ok {
		return probe, nil
	}

	out, err := r.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			probe := Probe{Existence: ExistenceAbsent}
			r.probes[cacheKey] = probe
			return probe, nil
		}
		return Probe{}, &ObjectProbeError{Bucket: bucket, Key: key, Err: err}
	}

	probe := Probe{Existence: ExistencePresent}
	if out.ContentLength != nil {
		probe.Size = *out.ContentLength
	}
	r.probes[cacheKey] = probe
	return probe, nil
}

// isNotFound recognizes both forms a HeadObject 404 can take: the modeled
// NotFound type and the bare API error code.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "404"
	}
	return false
}
