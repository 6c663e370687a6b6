// Package archive lưu bản chụp JSON của các pickup lên S3 trước khi xóa toàn bộ.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"safe-pickup-api-server/config"
	"safe-pickup-api-server/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI là phần của *s3.Client mà Uploader dùng.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Uploader struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
	Now    func() time.Time
}

func NewUploader(ctx context.Context, cfg config.S3Config) (*Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	// Không có key tĩnh thì dùng chuỗi credential mặc định (env, IAM role...).
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Uploader{
		Client: s3.NewFromConfig(sdkConfig),
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
		Now:    time.Now,
	}, nil
}

// ObjectKey builds the key for a snapshot taken at t.
func ObjectKey(prefix string, t time.Time) string {
	return path.Join(prefix, fmt.Sprintf("pickups-%s.json", t.UTC().Format("20060102T150405Z")))
}

type snapshot struct {
	ArchivedAt time.Time       `json:"archivedAt"`
	Count      int             `json:"count"`
	Pickups    []models.Pickup `json:"pickups"`
}

// ArchivePickups uploads the pickups as one JSON document and returns its s3:// location.
func (u *Uploader) ArchivePickups(ctx context.Context, pickups []models.Pickup) (string, error) {
	now := u.Now()
	body, err := json.Marshal(snapshot{ArchivedAt: now.UTC(), Count: len(pickups), Pickups: pickups})
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}

	key := ObjectKey(u.Prefix, now)
	_, err = u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", u.Bucket, key), nil
}
