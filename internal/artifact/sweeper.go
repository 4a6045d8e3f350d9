package artifact

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Sweep deletes artifacts older than the retention window. Keys whose
// embedded timestamp cannot be parsed are skipped. Returns the number of
// deleted objects; the call is idempotent.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()
	deleted := 0

	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return deleted, fmt.Errorf("artifact: list %s: %w", s.prefix, err)
		}

		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			ts, ok := keyTimestamp(*obj.Key)
			if !ok {
				continue
			}
			if ts >= cutoff {
				continue
			}
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			}); err != nil {
				return deleted, fmt.Errorf("artifact: delete %s: %w", *obj.Key, err)
			}
			deleted++
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			return deleted, nil
		}
		continuation = out.NextContinuationToken
	}
}

// StartJanitor sweeps expired artifacts on a fixed interval until ctx ends.
func (s *Store) StartJanitor(ctx context.Context, interval, retention time.Duration, onSwept func(int)) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx, retention)
				if err != nil {
					log.Printf("artifact sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("artifact sweep deleted %d expired objects", n)
				}
				if onSwept != nil {
					onSwept(n)
				}
			}
		}
	}()
}
