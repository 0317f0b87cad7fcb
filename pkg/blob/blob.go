// Package blob talks to the S3-compatible bucket holding document files.
// Files never pass through this service: drivers upload with a presigned PUT
// and reviewers read with a presigned GET.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"taxidocs/config"
	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
)

//go:generate mockgen -source=blob.go -destination=mocks/mocks.go -package=mocks Store

type Store interface {
	PresignPut(ctx context.Context, key string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
	// Exists returns nil when key is present, errs.ErrValidation when it is
	// not, and errs.ErrStorageUnavailable when the bucket cannot be reached.
	Exists(ctx context.Context, key string) error
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		return c.HeadObject(ctx, in)
	}
)

type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	log     logger.ILogger
}

func NewS3(ctx context.Context, cfg config.Config, log logger.ILogger) (*S3, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		log.Error("failed to load S3 config", logger.Error(err))
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	ttl := cfg.S3PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
		ttl:     ttl,
		log:     log,
	}, nil
}

// Key returns a fresh object key for a driver's document of the given category.
func Key(driverID int64, category models.Category) string {
	return fmt.Sprintf("drivers/%d/%s/%s", driverID, category, uuid.NewString())
}

func (s *S3) PresignPut(ctx context.Context, key string) (string, error) {
	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.log.Error("presign put failed", logger.String("key", key), logger.Error(err))
		return "", fmt.Errorf("presign put %s: %v: %w", key, err, errs.ErrStorageUnavailable)
	}
	return req.URL, nil
}

func (s *S3) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		s.log.Error("presign get failed", logger.String("key", key), logger.Error(err))
		return "", fmt.Errorf("presign get %s: %v: %w", key, err, errs.ErrStorageUnavailable)
	}
	return req.URL, nil
}

func (s *S3) Exists(ctx context.Context, key string) error {
	_, err := headObject(s.client, ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("file %q: %w", key, errs.ErrValidation)
	}
	s.log.Error("head object failed", logger.String("key", key), logger.Error(err))
	return fmt.Errorf("head %s: %v: %w", key, err, errs.ErrStorageUnavailable)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nk *types.NoSuchKey
	if errors.As(err, &nk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == 404
}
