package types

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort  uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Zero keeps the pgxpool defaults
	DatabaseMaxConns int32 `envconfig:"DATABASE_MAX_CONNS" default:"0"`
	DatabaseMinConns int32 `envconfig:"DATABASE_MIN_CONNS" default:"0"`

	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"60"`

	// Device payloads carry a base64 image, so the body limit is generous.
	MaxPayloadBytes int64 `envconfig:"MAX_PAYLOAD_BYTES" default:"15728640"` // 15 MiB

	// Object storage
	StorageBackend  string `envconfig:"STORAGE_BACKEND" default:"s3"` // s3 | supabase
	S3BucketName    string `envconfig:"S3_BUCKET_NAME"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	SupabaseProjectID  string `envconfig:"SUPABASE_PROJECT_ID"`
	SupabaseAPIKey     string `envconfig:"SUPABASE_API_KEY"`
	SupabaseBucketName string `envconfig:"SUPABASE_BUCKET_NAME" default:"report-images"`

	// Vision classifier (any OpenAI compatible endpoint)
	ClassifierBaseURL    string `envconfig:"CLASSIFIER_BASE_URL" default:"https://api.openai.com/v1"`
	ClassifierModel      string `envconfig:"CLASSIFIER_MODEL" default:"gpt-4o-mini"`
	ClassifierAPIKey     string `envconfig:"CLASSIFIER_API_KEY"`
	ClassifierTimeoutSec uint   `envconfig:"CLASSIFIER_TIMEOUT_SEC" default:"30"`

	// Substituted when the classifier is unavailable
	FallbackIssueType   string `envconfig:"FALLBACK_ISSUE_TYPE" default:"Unclassified"`
	FallbackSeverity    string `envconfig:"FALLBACK_SEVERITY" default:"Medium"`
	FallbackDescription string `envconfig:"FALLBACK_DESCRIPTION" default:"Automated fallback report: AI service unavailable. Manual review required."`
}

const (
	StorageBackendS3       = "s3"
	StorageBackendSupabase = "supabase"
)
