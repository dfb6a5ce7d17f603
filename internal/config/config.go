package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every listali environment variable.
const EnvPrefix = "LISTALI"

type Config struct {
	App     AppConfig
	Push    PushConfig
	Archive ArchiveConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Port     string `envconfig:"LISTALI_PORT" default:"8080"`
	DBPath   string `envconfig:"LISTALI_DB_PATH" default:"listali.db"`
	LogLevel string `envconfig:"LISTALI_LOG_LEVEL" default:"info"`
}

// PushConfig holds the VAPID key pair. Both keys empty disables web push.
type PushConfig struct {
	VAPIDPublicKey  string `envconfig:"LISTALI_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"LISTALI_VAPID_PRIVATE_KEY"`
	Subscriber      string `envconfig:"LISTALI_VAPID_SUBSCRIBER"`
}

// ArchiveConfig points at S3-compatible storage for encrypted list
// snapshots. An empty bucket disables archiving.
type ArchiveConfig struct {
	Endpoint  string `envconfig:"LISTALI_S3_ENDPOINT"`
	Bucket    string `envconfig:"LISTALI_S3_BUCKET"`
	Region    string `envconfig:"LISTALI_S3_REGION" default:"us-east-1"`
	AccessKey string `envconfig:"LISTALI_S3_ACCESS_KEY"`
	SecretKey string `envconfig:"LISTALI_S3_SECRET_KEY"`
}
