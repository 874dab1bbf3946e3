// Package avatars hands out presigned S3 upload URLs for profile images.
// Clients PUT the image straight to object storage and then set the
// returned image URL on their account.
package avatars

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/server/config"
)

const uploadTTL = 15 * time.Minute

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Seams for tests.
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Upload describes one presigned avatar upload.
type Upload struct {
	URL       string    `json:"upload_url"`
	Method    string    `json:"method"`
	Image     string    `json:"image"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store issues presigned PUT requests against one bucket.
type Store struct {
	bucket    string
	publicURL string
	presign   presigner
	now       func() time.Time
}

// New builds a Store from the S3 settings in cfg. The image URL handed back
// to clients is S3PublicURL/<key> when set, else a path-style URL on
// S3BaseEndpoint.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	public := cfg.S3PublicURL
	if public == "" {
		base := cfg.S3BaseEndpoint
		if base == "" {
			base = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.S3Region)
		}
		public = strings.TrimRight(base, "/") + "/" + cfg.S3Bucket
	}

	return &Store{
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimRight(public, "/"),
		presign:   s3.NewPresignClient(client),
		now:       time.Now,
	}, nil
}

// PresignUpload returns a URL the account may PUT an image of contentType to.
// Unsupported content types are a validation error.
func (s *Store) PresignUpload(ctx context.Context, accountID, contentType string) (*Upload, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return nil, common.NewValidationError("content_type", "is not a supported image type")
	}

	key := fmt.Sprintf("avatars/%s/%s%s", accountID, uuid.NewString(), ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadTTL))
	if err != nil {
		return nil, fmt.Errorf("presign avatar upload: %w", err)
	}

	return &Upload{
		URL:       req.URL,
		Method:    req.Method,
		Image:     s.publicURL + "/" + key,
		ExpiresAt: s.now().Add(uploadTTL),
	}, nil
}
