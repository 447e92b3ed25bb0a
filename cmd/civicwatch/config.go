package main

import (
	"context"
	"fmt"
	"time"

	"civicwatch/internal/classifier"
	"civicwatch/internal/ingest"
	"civicwatch/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/kelseyhightower/envconfig"
)

func loadConfig(prefix string) (*types.Config, error) {
	c := new(types.Config)
	if err := envconfig.Process(prefix, c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("set DATABASE_URL")
	}

	switch c.StorageBackend {
	case types.StorageBackendS3:
		if c.S3BucketName == "" {
			return nil, fmt.Errorf("set S3_BUCKET_NAME")
		}
	case types.StorageBackendSupabase:
		if c.SupabaseProjectID == "" || c.SupabaseAPIKey == "" {
			return nil, fmt.Errorf("set SUPABASE_PROJECT_ID and SUPABASE_API_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q, expected %q or %q", c.StorageBackend, types.StorageBackendS3, types.StorageBackendSupabase)
	}

	if c.MaxPayloadBytes <= 0 {
		return nil, fmt.Errorf("MAX_PAYLOAD_BYTES must be positive")
	}

	if err := ingest.ValidateFallback(fallbackClassification(c)); err != nil {
		return nil, fmt.Errorf("invalid fallback classification: %w", err)
	}

	return c, nil
}

func fallbackClassification(c *types.Config) types.Classification {
	return types.Classification{
		IssueType:     c.FallbackIssueType,
		Severity:      types.Severity(c.FallbackSeverity),
		AIDescription: c.FallbackDescription,
	}
}

func classifierConfig(c *types.Config) classifier.Config {
	return classifier.Config{
		BaseURL: c.ClassifierBaseURL,
		Model:   c.ClassifierModel,
		APIKey:  c.ClassifierAPIKey,
		Timeout: time.Duration(c.ClassifierTimeoutSec) * time.Second,
	}
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	config, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	return config, nil
}
