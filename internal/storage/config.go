package storage

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"nimbusdrive/internal/domain"
)

// Config описывает настройки хранилища. Тип бэкенда выбирается один
// раз при старте процесса, а не на каждый запрос.
type Config struct {
	Kind            string `mapstructure:"Kind"`
	RootPath        string `mapstructure:"RootPath"`
	Bucket          string `mapstructure:"Bucket"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.BindEnv("Kind", "STORAGE_KIND")
	v.BindEnv("RootPath", "STORAGE_ROOT_PATH")
	v.BindEnv("Bucket", "STORAGE_BUCKET")
	v.BindEnv("AccessKeyID", "STORAGE_ACCESS_KEY_ID")
	v.BindEnv("SecretAccessKey", "STORAGE_SECRET_ACCESS_KEY")
	v.BindEnv("Endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("Region", "STORAGE_REGION")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal storage config: %w", err)
	}

	// Значения по умолчанию
	if cfg.Kind == "" {
		cfg.Kind = string(domain.BackendLocal)
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "/var/lib/nimbusdrive/objects"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	switch domain.BackendKind(strings.ToUpper(cfg.Kind)) {
	case domain.BackendLocal:
	case domain.BackendS3:
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
			return nil, fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required for S3 backend")
		}
	default:
		return nil, fmt.Errorf("unknown storage backend kind: %s", cfg.Kind)
	}

	return &cfg, nil
}

// BackendKind возвращает нормализованный тип бэкенда
func (c *Config) BackendKind() domain.BackendKind {
	return domain.BackendKind(strings.ToUpper(c.Kind))
}
