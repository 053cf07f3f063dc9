package audit

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/procureline/engine/internal/canonical"
)

// Archiver persists canonical assignment event JSON to long-term storage.
type Archiver interface {
	ArchiveEvent(ctx context.Context, ev *AssignmentEvent) error
}

// S3Archiver writes events to s3://<bucket>/<prefix>/assignments/YYYY/MM/DD/<eventID>.json.
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Archiver builds an archiver using the ambient AWS configuration
// (AWS_REGION, credentials chain).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *S3Archiver) ArchiveEvent(ctx context.Context, ev *AssignmentEvent) error {
	if ev == nil {
		return fmt.Errorf("nil event")
	}

	body, err := canonical.Marshal(ev)
	if err != nil {
		return fmt.Errorf("canonicalize event: %w", err)
	}

	key := path.Join(s.prefix, "assignments",
		ev.Ts.Format("2006"), ev.Ts.Format("01"), ev.Ts.Format("02"),
		ev.ID+".json")

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/json"),
		StorageClass: s3types.StorageClassStandardIa,
	})
	if err != nil {
		return fmt.Errorf("upload event %s: %w", ev.ID, err)
	}
	return nil
}
