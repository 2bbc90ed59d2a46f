package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StorageService puts rendered share cards into an S3-compatible bucket and
// hands back public URLs.
type StorageService struct {
	client   *s3.Client
	bucket   string
	region   string
	cardRoot string
}

func NewStorageService(key, secret, region, bucket, cardRoot string) (*StorageService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	return &StorageService{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		region:   region,
		cardRoot: strings.TrimPrefix(cardRoot, "/"),
	}, nil
}

// UploadShareCard stores the PNG under the user's key and returns its public
// URL. Re-uploading overwrites the previous card.
func (s *StorageService) UploadShareCard(ctx context.Context, userID string, image []byte) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrValidation)
	}

	key := s.shareCardKey(userID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String("image/png"),
		ACL:         "public-read",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload share card: %w", err)
	}

	return s.PublicURL(key), nil
}

// DeleteShareCard removes the user's stored card, if any.
func (s *StorageService) DeleteShareCard(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.shareCardKey(userID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete share card: %w", err)
	}
	return nil
}

func (s *StorageService) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", s.bucket, s.region, key)
}

func (s *StorageService) shareCardKey(userID string) string {
	return fmt.Sprintf("%s/cards/%s.png", s.cardRoot, userID)
}
