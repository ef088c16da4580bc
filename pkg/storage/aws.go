package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// AWSStorage implements Archive on S3 or an S3-compatible service such as R2
type AWSStorage struct {
	client *s3.Client
	config StorageConfig
	logger *zap.Logger
}

// NewAWSStorage creates a new AWS storage instance
func NewAWSStorage(storageConfig StorageConfig, logger *zap.Logger) (*AWSStorage, error) {
	if storageConfig.Timeout == 0 {
		storageConfig.Timeout = time.Minute
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(storageConfig.AWSRegion),
	}

	if storageConfig.AWSProfile != "" {
		opts = append(opts, config.WithSharedConfigProfile(storageConfig.AWSProfile))
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, NewStorageError("aws_config", "", StorageBackendAWS, err)
	}

	// Override endpoint if specified (for S3-compatible services like R2)
	s3Options := []func(*s3.Options){}
	if storageConfig.AWSEndpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(storageConfig.AWSEndpoint)
			o.UsePathStyle = true // Required for custom endpoints
		})
	}

	client := s3.NewFromConfig(awsConfig, s3Options...)

	logger.Info("AWS storage initialized",
		zap.String("region", storageConfig.AWSRegion),
		zap.String("bucket", storageConfig.Bucket),
		zap.String("endpoint", storageConfig.AWSEndpoint))

	return &AWSStorage{
		client: client,
		config: storageConfig,
		logger: logger,
	}, nil
}

// PutObject uploads body to the bucket
func (a *AWSStorage) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	fullKey := joinKey(a.config.Prefix, key)

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.config.Bucket),
		Key:           aws.String(fullKey),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return NewStorageError("put_object", fullKey, StorageBackendAWS, err)
	}

	a.logger.Debug("Uploaded to S3",
		zap.String("bucket", a.config.Bucket),
		zap.String("key", fullKey),
		zap.Int("bytes", len(body)))

	return nil
}

// GetObject downloads an object from the bucket
func (a *AWSStorage) GetObject(ctx context.Context, key string) ([]byte, error) {
	fullKey := joinKey(a.config.Prefix, key)

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	output, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, NewStorageError("get_object", fullKey, StorageBackendAWS, ErrObjectNotFound)
		}
		return nil, NewStorageError("get_object", fullKey, StorageBackendAWS, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, NewStorageError("get_object", fullKey, StorageBackendAWS, err)
	}

	return data, nil
}

// Close closes any resources used by the storage implementation
func (a *AWSStorage) Close() error {
	a.logger.Debug("Closing AWS storage")
	return nil
}
