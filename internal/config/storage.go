package config

import (
	"fmt"
	"os"
)

// StorageConfig selects where uploaded exchange documents are kept.
type StorageConfig struct {
	Type         string `mapstructure:"type"`           // "local", "s3", "r2" or "s3compatible"
	LocalDir     string `mapstructure:"local_dir"`      // Root directory for the local backend
	Endpoint     string `mapstructure:"endpoint"`       // S3 endpoint host, empty for AWS
	AccessKey    string `mapstructure:"access_key"`     // Access key (can be set directly or via env var)
	AccessKeyEnv string `mapstructure:"access_key_env"` // Environment variable name for access key
	SecretKey    string `mapstructure:"secret_key"`     // Secret key (can be set directly or via env var)
	SecretKeyEnv string `mapstructure:"secret_key_env"` // Environment variable name for secret key
	UseSSL       bool   `mapstructure:"use_ssl"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Prefix       string `mapstructure:"prefix"` // Key prefix for every stored document
}

// ResolveEnvVars loads credentials from the named environment variables.
// Direct values take precedence if already set.
func (c *StorageConfig) ResolveEnvVars() {
	if c.AccessKeyEnv != "" && c.AccessKey == "" {
		if val := os.Getenv(c.AccessKeyEnv); val != "" {
			c.AccessKey = val
		}
	}
	if c.SecretKeyEnv != "" && c.SecretKey == "" {
		if val := os.Getenv(c.SecretKeyEnv); val != "" {
			c.SecretKey = val
		}
	}
}

// IsLocal reports whether documents are kept on the local filesystem.
func (c *StorageConfig) IsLocal() bool {
	return c.Type == "" || c.Type == "local"
}

// Validate checks that the storage configuration has all required fields.
func (c *StorageConfig) Validate() error {
	switch c.Type {
	case "", "local":
		if c.LocalDir == "" {
			return fmt.Errorf("storage: local_dir is required for local storage")
		}
		return nil
	case "s3", "r2", "s3compatible":
	default:
		return fmt.Errorf("storage: unknown type %q", c.Type)
	}
	if c.Bucket == "" {
		return fmt.Errorf("storage %q: bucket is required", c.Type)
	}
	if c.Type != "s3" && c.Endpoint == "" {
		return fmt.Errorf("storage %q: endpoint is required", c.Type)
	}
	return nil
}
