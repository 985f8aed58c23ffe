package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const (
	keyPrefix     = "assets"
	presignExpiry = 15 * time.Minute
)

// ObjectAPI is the part of *s3.Client the mirror uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// PresignAPI is the part of *s3.PresignClient the mirror uses.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is the subset of the v4 presigned request we return.
type PresignedRequest struct {
	URL string
}

type presigner struct {
	client *s3.PresignClient
}

func (p presigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// S3Service mirrors stored assets into a bucket.
type S3Service struct {
	client     ObjectAPI
	presign    PresignAPI
	bucketName string
	logger     zerolog.Logger
}

func NewS3Service(client *s3.Client, bucketName string, logger zerolog.Logger) *S3Service {
	return &S3Service{client: client, presign: presigner{s3.NewPresignClient(client)}, bucketName: bucketName, logger: logger}
}

// NewS3ServiceWithAPI builds an S3Service over arbitrary implementations.
func NewS3ServiceWithAPI(client ObjectAPI, presign PresignAPI, bucketName string, logger zerolog.Logger) *S3Service {
	return &S3Service{client: client, presign: presign, bucketName: bucketName, logger: logger}
}

func ObjectKey(name string) string {
	return path.Join(keyPrefix, name)
}

// UploadAsset copies the file at filePath to the bucket under the asset name
// and returns a presigned download URL.
func (service *S3Service) UploadAsset(parentCtx context.Context, name, filePath string) (string, error) {
	ctx, cancel := context.WithTimeout(parentCtx, 1*time.Minute)
	defer cancel()

	imageBuffer, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("error while reading asset %s: %w", name, err)
	}

	key := ObjectKey(name)
	input := &s3.PutObjectInput{
		Bucket:            aws.String(service.bucketName),
		Key:               aws.String(key),
		Body:              bytes.NewReader(imageBuffer),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	}
	if _, err = service.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	req, err := service.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(service.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}
	service.logger.Debug().Str("key", key).Msg("asset uploaded")
	return req.URL, nil
}

func (service *S3Service) DeleteAsset(parentCtx context.Context, name string) error {
	if name == "" {
		return errors.New("key cannot be empty")
	}

	ctx, cancel := context.WithTimeout(parentCtx, 1*time.Minute)
	defer cancel()

	key := ObjectKey(name)
	deleteInput := &s3.DeleteObjectInput{
		Bucket: aws.String(service.bucketName),
		Key:    aws.String(key),
	}
	if _, err := service.client.DeleteObject(ctx, deleteInput); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	service.logger.Debug().Str("key", key).Msg("asset deleted")
	return nil
}
