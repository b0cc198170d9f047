package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/baliwag-egov/civreg/internal/validate"
)

// S3Store implements Store against an S3-compatible bucket (R2 in
// production).
type S3Store struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	maxSizeBytes  int64
	urlExpiry     time.Duration
	timeNow       func() time.Time
}

// S3Config holds configuration for the S3-backed document store.
type S3Config struct {
	BucketName       string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string
	MaxSizeMB        int
	URLExpiryMinutes int
}

// NewS3Store creates an S3-backed document store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 15
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 5
	}

	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &S3Store{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
	}, nil
}

func (s *S3Store) validateSize(size int64) error {
	if err := validate.FileSize(size, validate.FileConstraints{
		MaxSizeBytes: s.maxSizeBytes,
		MinSizeBytes: 1,
	}); err != nil {
		if errors.Is(err, validate.ErrFileTooLarge) {
			return ErrFileTooLarge
		}
		return err
	}
	return nil
}

// Put stores a document server-side and returns its key.
func (s *S3Store) Put(ctx context.Context, in PutInput) (string, error) {
	if err := ValidateContentType(in.ContentType); err != nil {
		return "", err
	}
	if err := s.validateSize(in.Size); err != nil {
		return "", err
	}
	key, err := GenerateKey(in.ContentType, in.Prefix)
	if err != nil {
		return "", err
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(in.ContentType),
		ContentLength: aws.Int64(in.Size),
		Body:          in.Body,
	})
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return key, nil
}

// Open retrieves a stored document.
func (s *S3Store) Open(ctx context.Context, key string) (*Object, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve document %s: %w", key, err)
	}

	obj := &Object{Body: out.Body, ContentType: ContentTypeForKey(key)}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

// SignedUploadURL returns a pre-signed PUT URL for a direct browser upload.
func (s *S3Store) SignedUploadURL(ctx context.Context, req SignedUploadRequest) (*SignedUploadResponse, error) {
	if err := ValidateContentType(req.ContentType); err != nil {
		return nil, err
	}
	if err := s.validateSize(req.Size); err != nil {
		return nil, err
	}
	key, err := GenerateKey(req.ContentType, req.Prefix)
	if err != nil {
		return nil, err
	}

	presigned, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.Size),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &SignedUploadResponse{
		URL:       presigned.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(s.urlExpiry),
	}, nil
}

// SignedDownloadURL returns a pre-signed GET URL for a stored document.
func (s *S3Store) SignedDownloadURL(ctx context.Context, key string) (string, error) {
	presigned, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return "", fmt.Errorf("presign download %s: %w", key, err)
	}
	return presigned.URL, nil
}
