package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Journal is a durable Journal backed by an S3-compatible bucket: trace
// records accumulate per-run under trace/<run_id>.msgpack, artifacts
// under artifacts/<run_id>/<name>. It keeps an in-process read-through
// cache of each run's trace so Append doesn't round-trip the whole object
// on every call from a hot loop.
type S3Journal struct {
	client *s3.Client
	bucket string
	prefix string

	mu    sync.Mutex
	cache map[string][]Record
}

func NewS3Journal(client *s3.Client, bucket, prefix string) *S3Journal {
	return &S3Journal{client: client, bucket: bucket, prefix: prefix, cache: map[string][]Record{}}
}

func (j *S3Journal) traceKey(runID string) string {
	return j.prefix + "trace/" + runID + ".msgpack"
}

func (j *S3Journal) artifactKey(runID, name string) string {
	return j.prefix + "artifacts/" + runID + "/" + name
}

func (j *S3Journal) Append(ctx context.Context, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	recs, ok := j.cache[rec.RunID]
	if !ok {
		loaded, err := j.loadTrace(ctx, rec.RunID)
		if err != nil {
			return err
		}
		recs = loaded
	}
	recs = append(recs, rec)
	j.cache[rec.RunID] = recs

	body, err := EncodeTrace(recs)
	if err != nil {
		return err
	}
	_, err = j.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(j.traceKey(rec.RunID)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("append trace record to s3: %w", err)
	}
	return nil
}

func (j *S3Journal) loadTrace(ctx context.Context, runID string) ([]Record, error) {
	out, err := j.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(j.traceKey(runID)),
	})
	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load trace from s3: %w", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read trace body: %w", err)
	}
	return DecodeTrace(body)
}

func (j *S3Journal) Trace(ctx context.Context, runID string) ([]Record, error) {
	j.mu.Lock()
	if recs, ok := j.cache[runID]; ok {
		defer j.mu.Unlock()
		out := make([]Record, len(recs))
		copy(out, recs)
		return out, nil
	}
	j.mu.Unlock()
	return j.loadTrace(ctx, runID)
}

func (j *S3Journal) PutArtifact(ctx context.Context, runID, name string, data []byte) error {
	_, err := j.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(j.artifactKey(runID, name)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put artifact to s3: %w", err)
	}
	return nil
}

func (j *S3Journal) GetArtifact(ctx context.Context, runID, name string) ([]byte, error) {
	out, err := j.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(j.bucket),
		Key:    aws.String(j.artifactKey(runID, name)),
	})
	if err != nil {
		return nil, fmt.Errorf("get artifact from s3: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
