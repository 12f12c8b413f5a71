package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	defaultPreviewTimeout = 3 * time.Second
	maxPreviewTimeout     = 10 * time.Second
)

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	RedisAddr      string
	FilesDir       string
	PreviewTimeout time.Duration
}

type Option func(*Config) error

// WithRedisAddr enables the Redis link preview cache.
func WithRedisAddr(addr string) Option {
	return func(c *Config) error {
		c.RedisAddr = addr
		return nil
	}
}

func WithFilesDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return fmt.Errorf("files directory cannot be empty")
		}
		c.FilesDir = dir
		return nil
	}
}

func WithPreviewTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 || d > maxPreviewTimeout {
			return fmt.Errorf("preview timeout must be in (0, %s], got %s", maxPreviewTimeout, d)
		}
		c.PreviewTimeout = d
		return nil
	}
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, opts ...Option) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		FilesDir:       "./uploads",
		PreviewTimeout: defaultPreviewTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
