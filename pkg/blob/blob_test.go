package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxidocs/config"
	"taxidocs/pkg/errs"
	"taxidocs/pkg/logger"
	"taxidocs/pkg/models"
)

func testConfig() config.Config {
	return config.Config{
		S3Endpoint:   "http://127.0.0.1:9000",
		S3Region:     "us-east-1",
		S3AccessKey:  "minioadmin",
		S3SecretKey:  "minioadmin",
		S3Bucket:     "driver-documents",
		S3PresignTTL: 5 * time.Minute,
	}
}

func newTestS3(t *testing.T) *S3 {
	t.Helper()
	s, err := NewS3(context.Background(), testConfig(), logger.NewNop())
	require.NoError(t, err)
	return s
}

func TestKeyFormat(t *testing.T) {
	k := Key(7, models.CategoryVehicle)
	assert.True(t, strings.HasPrefix(k, "drivers/7/vehicle/"), k)
	assert.NotEqual(t, k, Key(7, models.CategoryVehicle))
}

func TestPresignURLs(t *testing.T) {
	s := newTestS3(t)
	ctx := context.Background()

	put, err := s.PresignPut(ctx, "drivers/1/driver/abc")
	require.NoError(t, err)
	assert.Contains(t, put, "/driver-documents/drivers/1/driver/abc")
	assert.Contains(t, put, "X-Amz-Signature=")

	get, err := s.PresignGet(ctx, "drivers/1/driver/abc")
	require.NoError(t, err)
	assert.Contains(t, get, "X-Amz-Expires=300")
}

func TestPresignErrorIsRetryable(t *testing.T) {
	s := newTestS3(t)
	orig := presignGetObject
	t.Cleanup(func() { presignGetObject = orig })

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("signer down")
	}
	_, err := s.PresignGet(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errs.Retryable(err))
}

func TestExists(t *testing.T) {
	s := newTestS3(t)
	orig := headObject
	t.Cleanup(func() { headObject = orig })

	tests := []struct {
		name    string
		headErr error
		want    error
	}{
		{name: "present"},
		{name: "missing", headErr: &types.NotFound{}, want: errs.ErrValidation},
		{name: "no such key", headErr: &types.NoSuchKey{}, want: errs.ErrValidation},
		{name: "unreachable", headErr: errors.New("dial tcp: connection refused"), want: errs.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
				assert.Equal(t, "driver-documents", *in.Bucket)
				return &s3.HeadObjectOutput{}, tt.headErr
			}
			err := s.Exists(context.Background(), "drivers/1/driver/x")
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}
