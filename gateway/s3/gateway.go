// Package s3 implements smsretry.Gateway over an S3-compatible object
// store (AWS S3 or LocalStack), the persistence backend the scheduler was
// specified against.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

// API is the subset of *s3.Client the gateway depends on, narrowed so a
// fake can back unit tests without a LocalStack container.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Gateway is the S3-backed smsretry.Gateway implementation.
type Gateway struct {
	client        API
	bucket        string
	activePrefix  string
	successPrefix string
	failedPrefix  string
}

// Config names the bucket and key prefixes. Prefix defaults match
// spec.md's configuration table.
type Config struct {
	Bucket        string
	ActivePrefix  string
	SuccessPrefix string
	FailedPrefix  string
}

func (c *Config) setDefaults() {
	if c.ActivePrefix == "" {
		c.ActivePrefix = "state"
	}
	if c.SuccessPrefix == "" {
		c.SuccessPrefix = "success"
	}
	if c.FailedPrefix == "" {
		c.FailedPrefix = "failed"
	}
}

// New ensures the configured bucket exists and returns a ready Gateway.
func New(ctx context.Context, client API, cfg Config) (*Gateway, error) {
	if cfg.Bucket == "" {
		return nil, &smsretry.ConfigurationError{Field: "bucket"}
	}
	cfg.setDefaults()

	g := &Gateway{
		client:        client,
		bucket:        cfg.Bucket,
		activePrefix:  cfg.ActivePrefix,
		successPrefix: cfg.SuccessPrefix,
		failedPrefix:  cfg.FailedPrefix,
	}
	if err := g.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) ensureBucket(ctx context.Context) error {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		_, createErr := g.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(g.bucket)})
		if createErr != nil {
			return &smsretry.GatewayError{Op: "create_bucket", Err: createErr}
		}
		return nil
	}
	return &smsretry.GatewayError{Op: "head_bucket", Err: err}
}

func (g *Gateway) activeKey(messageID string) string {
	return fmt.Sprintf("%s/%s.json", g.activePrefix, messageID)
}

// terminalKey formats a key so that lexical ordering of keys under a
// prefix equals chronological ordering by updated_at, per spec.md §4.2.
func terminalKey(prefix string, updatedAt float64, messageID string) string {
	millis := int64(updatedAt * 1000)
	return fmt.Sprintf("%s/%013d_%s.json", prefix, millis, messageID)
}

func (g *Gateway) PutActive(ctx context.Context, rec *smsretry.Record) error {
	return g.putJSON(ctx, g.activeKey(rec.MessageID), rec)
}

func (g *Gateway) GetActive(ctx context.Context, messageID string) (*smsretry.Record, error) {
	return g.getJSONByKey(ctx, g.activeKey(messageID))
}

func (g *Gateway) DeleteActive(ctx context.Context, messageID string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.activeKey(messageID)),
	})
	if err != nil {
		return &smsretry.GatewayError{Op: "delete_active", MessageID: messageID, Err: err}
	}
	return nil
}

func (g *Gateway) ListActive(ctx context.Context) ([]string, error) {
	prefix := g.activePrefix + "/"
	var ids []string

	var token *string
	for {
		out, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(g.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, &smsretry.GatewayError{Op: "list_active", Err: err}
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
			if id != "" {
				ids = append(ids, id)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return ids, nil
}

func (g *Gateway) PutSuccess(ctx context.Context, rec *smsretry.Record) error {
	return g.putJSON(ctx, terminalKey(g.successPrefix, rec.UpdatedAt, rec.MessageID), rec)
}

func (g *Gateway) PutFailed(ctx context.Context, rec *smsretry.Record) error {
	return g.putJSON(ctx, terminalKey(g.failedPrefix, rec.UpdatedAt, rec.MessageID), rec)
}

func (g *Gateway) ListRecentSuccess(ctx context.Context, limit int) ([]*smsretry.Record, error) {
	return g.listRecentFromPrefix(ctx, g.successPrefix, limit)
}

func (g *Gateway) ListRecentFailed(ctx context.Context, limit int) ([]*smsretry.Record, error) {
	return g.listRecentFromPrefix(ctx, g.failedPrefix, limit)
}

func (g *Gateway) listRecentFromPrefix(ctx context.Context, prefix string, limit int) ([]*smsretry.Record, error) {
	fullPrefix := prefix + "/"
	var keys []string

	var token *string
	for {
		out, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(g.bucket),
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, &smsretry.GatewayError{Op: "list_recent", Err: err}
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	// Keys embed a zero-padded millisecond timestamp, so lexical descending
	// order is chronological descending order.
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	records := make([]*smsretry.Record, 0, len(keys))
	for _, key := range keys {
		rec, err := g.getJSONByKey(ctx, key)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (g *Gateway) putJSON(ctx context.Context, key string, rec *smsretry.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return &smsretry.SerializationError{Key: key, Err: err}
	}
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &smsretry.GatewayError{Op: "put_object", MessageID: rec.MessageID, Err: err}
	}
	return nil
}

func (g *Gateway) getJSONByKey(ctx context.Context, key string) (*smsretry.Record, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &smsretry.GatewayError{Op: "get_object", Err: err}
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &smsretry.GatewayError{Op: "get_object", Err: err}
	}

	var rec smsretry.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, &smsretry.SerializationError{Key: key, Err: err}
	}
	return &rec, nil
}

var _ smsretry.Gateway = (*Gateway)(nil)
