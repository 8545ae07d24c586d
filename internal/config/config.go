package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"omnidigest/internal/app"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                 string             `yaml:"port"`
	LogLevel             string             `yaml:"logLevel"`
	DatabaseURL          string             `yaml:"databaseURL"`
	RedisAddr            string             `yaml:"redisAddr"`
	RedisPassword        string             `yaml:"redisPassword"`
	EngineURL            string             `yaml:"engineURL"`
	EngineTimeoutSeconds int                `yaml:"engineTimeoutSeconds"`
	StagingDir           string             `yaml:"stagingDir"`
	AttachmentsDir       string             `yaml:"attachmentsDir"`
	MinioEndpoint        string             `yaml:"minioEndpoint"`
	MinioAccessKey       string             `yaml:"minioAccessKey"`
	MinioSecretKey       string             `yaml:"minioSecretKey"`
	MinioBucket          string             `yaml:"minioBucket"`
	MinioUseSSL          bool               `yaml:"minioUseSSL"`
	MaxUploadBytes       int64              `yaml:"maxUploadBytes"`
	AllowedExtensions    []string           `yaml:"allowedExtensions"`
	LengthBuckets        []app.LengthBucket `yaml:"lengthBuckets"`
	SummarizePerMinute   int                `yaml:"summarizeRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("ENGINE_URL"); v != "" {
		cfg.EngineURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("OMNIDIGEST_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("OMNIDIGEST_ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = splitCSV(v)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.EngineURL == "" {
		return errors.New("config: engineURL is required (set in config.yaml or ENGINE_URL)")
	}
	if cfg.SummarizePerMinute > 0 && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when summarizeRateLimitPerMinute is set")
	}
	for _, bucket := range cfg.LengthBuckets {
		if bucket.Ratio <= 0 || bucket.Ratio > 1 {
			return fmt.Errorf("config: lengthBuckets ratio %v must be in (0,1]", bucket.Ratio)
		}
		if strings.TrimSpace(bucket.Label) == "" {
			return errors.New("config: lengthBuckets entries require a label")
		}
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
