// Package config builds the run configuration from a .env file, the process
// environment and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/dvloznov/billing-olap/internal/storage"
)

// ErrMissingSetting is returned by Validate when a required setting is empty.
var ErrMissingSetting = errors.New("config: missing setting")

// Environments.
const (
	EnvDev  = "DEV"
	EnvProd = "PROD"
)

// Storage backends.
const (
	BackendGCS = "gcs"
	BackendS3  = "s3"
)

// DefaultEnvFiles are searched in order; the first readable one is used.
var DefaultEnvFiles = []string{
	".env",
	"../../.env",
}

// Config is the full set of settings for one process.
type Config struct {
	Env            string
	StorageBackend string

	GCSBucket    string
	GCPCredsFile string

	S3 storage.S3Config

	DumpPrefix     string
	OutputPrefix   string
	LocalOutputDir string
	SQLDir         string

	BQProjectID string
	BQDatasetID string

	SnowflakeStage string

	NotionToken          string
	NotionRunsDatabaseID string

	LogLevel string
}

// Load reads the first .env file found among files (DefaultEnvFiles when
// none are given), then lets the process environment override it. A missing
// .env file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}

	values := map[string]string{}
	for _, f := range files {
		env, err := godotenv.Read(f)
		if err == nil {
			values = env
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Load: reading %s: %w", f, err)
		}
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if v != "" {
			values[k] = v
		}
	}
	return FromMap(values), nil
}

// FromMap builds a Config from raw settings, applying defaults.
func FromMap(values map[string]string) *Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
		return def
	}

	return &Config{
		Env:            strings.ToUpper(get("ENV", EnvDev)),
		StorageBackend: strings.ToLower(get("STORAGE_BACKEND", BackendGCS)),
		GCSBucket:      get("GCS_BUCKET", ""),
		GCPCredsFile:   get("GCP_CREDS_FILE", ""),
		S3: storage.S3Config{
			Bucket:          get("S3_BUCKET", ""),
			Region:          get("S3_REGION", "us-east-1"),
			EndpointURL:     get("S3_ENDPOINT_URL", ""),
			AccessKeyID:     get("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: get("S3_SECRET_ACCESS_KEY", ""),
		},
		DumpPrefix:           get("DUMP_PREFIX", "dump/"),
		OutputPrefix:         get("OUTPUT_PREFIX", "olap_outputs/"),
		LocalOutputDir:       get("LOCAL_OUTPUT_DIR", "olap_outputs"),
		SQLDir:               get("SQL_DIR", "scripts/sql"),
		BQProjectID:          get("BQ_PROJECT_ID", ""),
		BQDatasetID:          get("BQ_DATASET_ID", "stripe_olap"),
		SnowflakeStage:       get("SNOWFLAKE_STAGE", "@STRIPE_OLAP.RAW.GCS_STAGE_PROD"),
		NotionToken:          get("NOTION_TOKEN", ""),
		NotionRunsDatabaseID: get("NOTION_RUNS_DATABASE_ID", ""),
		LogLevel:             get("LOG_LEVEL", "info"),
	}
}

// RegisterFlags binds the settings commonly overridden per invocation to fs.
// Current values become the flag defaults, so flags win over the
// environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Env, "env", c.Env, "Environment: DEV or PROD")
	fs.StringVar(&c.StorageBackend, "storage", c.StorageBackend, "Object storage backend: gcs or s3")
	fs.StringVar(&c.GCSBucket, "bucket", c.GCSBucket, "GCS bucket holding dumps and outputs")
	fs.StringVar(&c.BQProjectID, "project", c.BQProjectID, "BigQuery project ID")
	fs.StringVar(&c.BQDatasetID, "dataset", c.BQDatasetID, "BigQuery dataset ID")
	fs.StringVar(&c.SQLDir, "sql-dir", c.SQLDir, "Directory the SQL scripts are written to")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
}

// IsProd reports whether the run reads and writes the object store.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.Env, EnvProd)
}

// Bucket returns the bucket of the configured backend.
func (c *Config) Bucket() string {
	if c.StorageBackend == BackendS3 {
		return c.S3.Bucket
	}
	return c.GCSBucket
}

// Validate normalizes the case of the enumerated settings and checks the
// settings a run needs. needWarehouse is set for commands that talk to
// BigQuery.
func (c *Config) Validate(needWarehouse bool) error {
	c.Env = strings.ToUpper(c.Env)
	c.StorageBackend = strings.ToLower(c.StorageBackend)

	switch c.Env {
	case EnvDev, EnvProd:
	default:
		return fmt.Errorf("Validate: ENV must be %s or %s, got %q", EnvDev, EnvProd, c.Env)
	}
	switch c.StorageBackend {
	case BackendGCS, BackendS3:
	default:
		return fmt.Errorf("Validate: STORAGE_BACKEND must be %s or %s, got %q", BackendGCS, BackendS3, c.StorageBackend)
	}

	if c.IsProd() && c.Bucket() == "" {
		key := "GCS_BUCKET"
		if c.StorageBackend == BackendS3 {
			key = "S3_BUCKET"
		}
		return fmt.Errorf("Validate: %s is required in %s: %w", key, EnvProd, ErrMissingSetting)
	}
	if needWarehouse && c.BQProjectID == "" {
		return fmt.Errorf("Validate: BQ_PROJECT_ID: %w", ErrMissingSetting)
	}
	if needWarehouse && c.BQDatasetID == "" {
		return fmt.Errorf("Validate: BQ_DATASET_ID: %w", ErrMissingSetting)
	}
	return nil
}

// ClientOptions returns the Google client options for the configured
// credentials file, if any.
func (c *Config) ClientOptions() []option.ClientOption {
	if c.GCPCredsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.GCPCredsFile)}
}

// NotionEnabled reports whether run reports should be sent to Notion.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionRunsDatabaseID != ""
}
