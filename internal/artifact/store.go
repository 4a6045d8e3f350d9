package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// ObjectClient abstracts the S3 API operations used by [Store].
// The [s3.Client] type satisfies this interface.
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Store uploads synthesized audio to S3 and manages its retention.
type Store struct {
	client ObjectClient
	bucket string
	region string
	prefix string
}

// Config for a Store. Region defaults to us-east-1; Prefix defaults to
// "audio/".
type Config struct {
	Bucket string
	Region string
	Prefix string
}

func NewStore(client ObjectClient, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("artifact: bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "audio/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{client: client, bucket: cfg.Bucket, region: region, prefix: prefix}, nil
}

// CheckBucket verifies the bucket is reachable. Callers degrade to a
// no-audio mode when it is not.
func (s *Store) CheckBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("artifact: head bucket %s: %s", s.bucket, apiErr.ErrorCode())
		}
		return fmt.Errorf("artifact: head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// StoreAudio uploads one MP3 artifact and returns its public URL.
func (s *Store) StoreAudio(ctx context.Context, audio []byte, language string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("artifact: empty audio")
	}
	now := time.Now().UTC()
	key := s.newKey(now)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(audio),
		ContentType:  aws.String("audio/mpeg"),
		CacheControl: aws.String("max-age=3600"),
		Metadata: map[string]string{
			"language":  language,
			"timestamp": strconv.FormatInt(now.Unix(), 10),
		},
	})
	if err != nil {
		return "", fmt.Errorf("artifact: put %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

func (s *Store) newKey(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%saudio_%d_%s.mp3", s.prefix, now.Unix(), suffix)
}

func (s *Store) publicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// keyTimestamp parses the unix timestamp embedded in an artifact key.
// Keys look like "audio/audio_1712345678_ab12cd.mp3".
func keyTimestamp(key string) (int64, bool) {
	base := key
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	parts := strings.Split(base, "_")
	if len(parts) < 3 || parts[0] != "audio" {
		return 0, false
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ts <= 0 {
		return 0, false
	}
	return ts, true
}
