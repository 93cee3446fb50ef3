// Package storage hands out presigned S3 URLs for user uploads (profile
// pictures). Clients upload and download directly against the object
// store; the API only stores the object key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// DefaultExpiry is the lifetime of presigned URLs.
const DefaultExpiry = 15 * time.Minute

var ErrNotConfigured = errors.New("object storage is not configured")

// Settings configure the S3 (or MinIO) endpoint.
type Settings struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
	Expiry       time.Duration
}

type S3Storage struct {
	bucket  string
	expiry  time.Duration
	presign *s3.PresignClient
}

// NewS3Storage builds the presign client. Static credentials are used so
// the server works against MinIO without an AWS profile.
func NewS3Storage(ctx context.Context, s Settings) (*S3Storage, error) {
	if s.Bucket == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	expiry := s.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}

	return &S3Storage{bucket: s.Bucket, expiry: expiry, presign: newS3PresignClient(client)}, nil
}

// PresignPut returns a URL the client can PUT the object to.
func (s *S3Storage) PresignPut(ctx context.Context, key string) (string, error) {
	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PresignGet returns a time-limited download URL for key.
func (s *S3Storage) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := presignGetObject(s.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// ProfilePictureKey returns a fresh object key for a user's picture.
func ProfilePictureKey(userID string, now time.Time) string {
	return fmt.Sprintf("profile_pictures/%s/%d/%d/%d/%v", userID, now.Year(), now.Month(), now.Day(), uuid.New())
}
