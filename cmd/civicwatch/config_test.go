package main

import (
	"testing"
	"time"

	"civicwatch/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("CW_DATABASE_URL", "postgres://localhost/civicwatch")
	t.Setenv("CW_S3_BUCKET_NAME", "civicwatch-images")

	cfg, err := loadConfig("CW")
	require.NoError(t, err)

	assert.Equal(t, uint(8080), cfg.ServerPort)
	assert.Equal(t, types.StorageBackendS3, cfg.StorageBackend)
	assert.Equal(t, types.Classification{
		IssueType:     "Unclassified",
		Severity:      types.SeverityMedium,
		AIDescription: "Automated fallback report: AI service unavailable. Manual review required.",
	}, fallbackClassification(cfg))
	assert.Equal(t, 30*time.Second, classifierConfig(cfg).Timeout)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing database",
			env:  map[string]string{},
			want: "DATABASE_URL",
		},
		{
			name: "missing bucket",
			env:  map[string]string{"CW_DATABASE_URL": "postgres://x"},
			want: "S3_BUCKET_NAME",
		},
		{
			name: "supabase without key",
			env: map[string]string{
				"CW_DATABASE_URL":        "postgres://x",
				"CW_STORAGE_BACKEND":     "supabase",
				"CW_SUPABASE_PROJECT_ID": "abc",
			},
			want: "SUPABASE_API_KEY",
		},
		{
			name: "unknown backend",
			env:  map[string]string{"CW_DATABASE_URL": "postgres://x", "CW_STORAGE_BACKEND": "gcs"},
			want: "STORAGE_BACKEND",
		},
		{
			name: "fallback cannot be no issues",
			env: map[string]string{
				"CW_DATABASE_URL":        "postgres://x",
				"CW_S3_BUCKET_NAME":      "bucket",
				"CW_FALLBACK_ISSUE_TYPE": types.IssueTypeNone,
			},
			want: "fallback",
		},
		{
			name: "fallback severity",
			env: map[string]string{
				"CW_DATABASE_URL":      "postgres://x",
				"CW_S3_BUCKET_NAME":    "bucket",
				"CW_FALLBACK_SEVERITY": "Critical",
			},
			want: "severity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := loadConfig("CW")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
