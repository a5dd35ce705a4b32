// Package s3 keeps one JSON object per mapping at `<prefix><shortId>.json`.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/filmzi/filelink/backend/internal/storage/record"
	"github.com/filmzi/filelink/shared/config"
	"github.com/filmzi/filelink/shared/domain"
	internal_errors "github.com/filmzi/filelink/shared/errors"
	"github.com/filmzi/filelink/shared/logger"
)

const objectSuffix = ".json"

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type Storage struct {
	client objectAPI
	bucket string
	prefix string
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s3cfg := cfg.Public.DirectStore.S3
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s3cfg.Region)}
	if cfg.Private.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Private.S3.AccessKeyID, cfg.Private.S3.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO, R2 and friends
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Log.Info("using s3 direct store", "bucket", s3cfg.Bucket, "endpoint", s3cfg.Endpoint)
	return NewWithClient(client, s3cfg.Bucket, s3cfg.Prefix), nil
}

func NewWithClient(client objectAPI, bucket, prefix string) *Storage {
	return &Storage{client: client, bucket: bucket, prefix: prefix}
}

func (s *Storage) key(id domain.ShortId) string {
	return s.prefix + string(id) + objectSuffix
}

func (s *Storage) Put(ctx context.Context, m domain.FileMapping) error {
	data, err := record.Encode(m, record.Plain)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(m.ShortId)),
		Body:        strings.NewReader(string(data)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", m.ShortId, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, id domain.ShortId) (domain.FileMapping, error) {
	return s.get(ctx, s.key(id))
}

func (s *Storage) get(ctx context.Context, key string) (domain.FileMapping, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return domain.FileMapping{}, internal_errors.NotFound
	}
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("read object %s: %w", key, err)
	}
	m, err := record.Decode("", data)
	if err != nil {
		return domain.FileMapping{}, fmt.Errorf("object %s: %w", key, err)
	}
	return m, nil
}

// List reads every object under the prefix. Unreadable objects are skipped.
func (s *Storage) List(ctx context.Context) ([]domain.FileMapping, error) {
	var mappings []domain.FileMapping
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, objectSuffix) {
				continue
			}
			m, err := s.get(ctx, key)
			if err != nil {
				logger.Log.Debug("skipping unreadable mapping object", "key", key, "error", err)
				continue
			}
			mappings = append(mappings, m)
		}
	}
	return mappings, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	// S3-compatible services do not always return the typed error.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
