package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/s3rsync/s3rsync/internal/utils"
)

// ConfigFileName is the optional per-directory config file, read from the
// sync root. CLI flags take precedence over its values.
const ConfigFileName = ".s3-remotely-sync.yml"

// Config carries everything one sync invocation needs. Values are merged
// from CLI flags, the per-directory config file, and the environment before
// Validate is called.
type Config struct {
	LocalPath  string   `mapstructure:"local_path"`
	Bucket     string   `mapstructure:"bucket"`
	Prefix     string   `mapstructure:"prefix"`
	Endpoint   string   `mapstructure:"endpoint-url"`
	Region     string   `mapstructure:"region"`
	AccessKey  string   `mapstructure:"-"`
	SecretKey  string   `mapstructure:"-"`
	Extensions []string `mapstructure:"extensions"`
	Blacklist  bool     `mapstructure:"blacklist"`

	DryRun      bool `mapstructure:"-"`
	Concurrency int  `mapstructure:"concurrency"`
}

func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return errors.New("local path is required")
	}

	resolved, err := utils.ResolvePath(c.LocalPath)
	if err != nil {
		return fmt.Errorf("invalid local path %q: %w", c.LocalPath, err)
	}
	if !utils.DirExists(resolved) {
		return fmt.Errorf("local path %q is not a directory", c.LocalPath)
	}
	c.LocalPath = resolved

	if c.Bucket == "" {
		return errors.New("bucket must be specified either in config file or command line")
	}

	c.Prefix = strings.Trim(c.Prefix, "/")
	if c.Prefix == "" {
		return errors.New("prefix must be specified either in config file or command line")
	}

	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("access key and secret key must be provided through flags or environment variables")
	}

	if c.Region == "" {
		c.Region = "us-east-1"
	}

	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}

	return nil
}

// CredentialsFromEnv resolves the access key pair from the environment,
// preferring the OSS names over the AWS ones, matching common
// S3-compatible providers.
func CredentialsFromEnv() (accessKey, secretKey string) {
	accessKey = firstEnv("OSS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	secretKey = firstEnv("OSS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	return accessKey, secretKey
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
