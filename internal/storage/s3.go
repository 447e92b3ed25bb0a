package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores report images in an S3 bucket.
type S3Storage struct {
	client        s3API
	bucketName    string
	region        string
	publicBaseURL string
	now           func() time.Time
}

// NewS3Storage creates an S3 backed store. When publicBaseURL is empty the
// virtual-hosted bucket URL is used.
func NewS3Storage(client *s3.Client, bucketName, publicBaseURL string) *S3Storage {
	return newS3Storage(client, bucketName, client.Options().Region, publicBaseURL)
}

func newS3Storage(client s3API, bucketName, region, publicBaseURL string) *S3Storage {
	return &S3Storage{
		client:        client,
		bucketName:    bucketName,
		region:        region,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		now:           time.Now,
	}
}

func (s *S3Storage) Store(ctx context.Context, deviceID, dataURI string) (string, string, error) {
	image, err := ParseDataURI(dataURI)
	if err != nil {
		return "", "", err
	}

	key := ObjectKey(deviceID, s.now(), image.Ext())

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(image.Data),
		ContentType:   aws.String(image.ContentType),
		ContentLength: aws.Int64(int64(len(image.Data))),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return s.PublicURL(key), key, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	return nil
}

func (s *S3Storage) PublicURL(key string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s", s.publicBaseURL, escapeKey(key))
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, escapeKey(key))
}
