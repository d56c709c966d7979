package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/OFFIS-RIT/matchgraph/internal/config"
	"github.com/OFFIS-RIT/matchgraph/internal/util"
	"github.com/OFFIS-RIT/matchgraph/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const uploadTries = 3

var uploadBackoff = util.Backoff{Initial: 500 * time.Millisecond, Max: 5 * time.Second}

// ObjectStore is the subset of the S3 client used for publishing artifacts
// and, through the s3 loader, for fetching inputs.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func NewS3Client(ctx context.Context, cfg config.S3) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// ObjectKey joins the configured prefix and the base name of a local file.
func ObjectKey(prefix string, localPath string) string {
	return path.Join(prefix, filepath.Base(localPath))
}

// PutFile uploads the local file to bucket/key, retrying transient failures.
func PutFile(ctx context.Context, client ObjectStore, bucket string, key string, localPath string) error {
	mimeType := mime.TypeByExtension(filepath.Ext(localPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return util.RetryErrWithContext(ctx, uploadTries, uploadBackoff, func(ctx context.Context) error {
		f, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", localPath, err)
		}
		defer f.Close()

		_, err = client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(mimeType),
		})
		if err != nil {
			logger.Warn("[Storage] Upload attempt failed", "key", key, "err", err)
			return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, bucket, key, err)
		}
		return nil
	})
}
