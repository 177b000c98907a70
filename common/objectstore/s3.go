package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/duette-app/duette/common/config"
	"github.com/duette-app/duette/common/logger"
)

// S3Store forwards every call to a single S3 bucket
type S3Store struct {
	client     *s3.Client
	bucketName string
	log        *logger.Logger
}

// NewS3Store wraps an existing client
func NewS3Store(client *s3.Client, bucketName string, log *logger.Logger) *S3Store {
	return &S3Store{
		client:     client,
		bucketName: bucketName,
		log:        log,
	}
}

// NewS3StoreFromConfig loads AWS credentials from the default chain
func NewS3StoreFromConfig(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	log.Info("s3 object store ready", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return NewS3Store(client, cfg.Bucket, log), nil
}

// Put issues one PutObject call, errors are returned unwrapped
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) (*PutResult, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.log.Warn("s3 put failed", "key", key, "error", err)
		return nil, err
	}

	s.log.Debug("s3 put", "key", key, "size", len(body))
	return &PutResult{
		Key:       key,
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionId),
		Size:      int64(len(body)),
	}, nil
}

// Get issues one GetObject call
func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Warn("s3 get failed", "key", key, "error", err)
		return nil, err
	}

	return &Object{
		Body:          out.Body,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		ETag:          aws.ToString(out.ETag),
	}, nil
}

// Delete issues one DeleteObject call
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Warn("s3 delete failed", "key", key, "error", err)
		return err
	}
	s.log.Debug("s3 delete", "key", key)
	return nil
}

// BucketName returns the configured bucket
func (s *S3Store) BucketName() string {
	return s.bucketName
}
