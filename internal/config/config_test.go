package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		key  = "c29tZV9zZWNyZXQ="
		orig = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name string
		addr string
		dsn  string
		key  string
		orig []string
		err  bool
	}{
		{
			name: "valid config",
			addr: addr,
			dsn:  dsn,
			key:  key,
			orig: orig,
			err:  false,
		},
		{
			name: "empty address",
			addr: "",
			dsn:  dsn,
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty DSN",
			addr: addr,
			dsn:  "",
			key:  key,
			orig: orig,
			err:  true,
		},
		{
			name: "empty signing key",
			addr: addr,
			dsn:  dsn,
			key:  "",
			orig: orig,
			err:  true,
		},
		{
			name: "invalid signing key",
			addr: addr,
			dsn:  dsn,
			key:  "not base64!",
			orig: orig,
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.dsn, tc.key, tc.orig)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
			assert.NotEmpty(t, config.SigningKey, "expected signing key to be decoded and not empty")
			assert.Equal(t, defaultPreviewTimeout, config.PreviewTimeout, "expected default preview timeout")
			assert.Empty(t, config.RedisAddr, "expected redis cache to be disabled by default")
		})
	}
}

func TestNewConfig_options(t *testing.T) {
	tcases := []struct {
		name  string
		opts  []Option
		err   bool
		check func(t *testing.T, c *Config)
	}{
		{
			name: "redis address",
			opts: []Option{WithRedisAddr("localhost:6379")},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "localhost:6379", c.RedisAddr)
			},
		},
		{
			name: "files directory",
			opts: []Option{WithFilesDir("/srv/files")},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "/srv/files", c.FilesDir)
			},
		},
		{
			name: "empty files directory",
			opts: []Option{WithFilesDir("")},
			err:  true,
		},
		{
			name: "preview timeout",
			opts: []Option{WithPreviewTimeout(time.Second)},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, time.Second, c.PreviewTimeout)
			},
		},
		{
			name: "zero preview timeout",
			opts: []Option{WithPreviewTimeout(0)},
			err:  true,
		},
		{
			name: "preview timeout too long",
			opts: []Option{WithPreviewTimeout(time.Minute)},
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig("localhost:8080", "dsn", "c29tZV9zZWNyZXQ=", nil, tc.opts...)
			if tc.err {
				assert.Error(t, err, "expected option error")
				return
			}
			assert.NoError(t, err, "expected no error")
			tc.check(t, cfg)
		})
	}
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
			expectError:  false,
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectedKey:  nil,
			expectError:  true,
		},
		{
			name:         "empty base64 secret",
			base64Secret: "",
			expectedKey:  nil,
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
