package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, EnvDevelopment, cfg.Env)
				assert.Equal(t, "8080", cfg.HTTPPort)
				assert.Equal(t, 40, cfg.DefaultETAMinutes)
				assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
				assert.Equal(t, "https://api.paystack.co", cfg.PaystackBaseURL)
				assert.Equal(t, devJWTSecret, cfg.JWTSecret)
				assert.NotEmpty(t, cfg.AllowedOrigins)
				assert.Contains(t, cfg.DatabaseURL, "localhost:5432")
			},
		},
		{
			name: "database url from platform variables",
			env: map[string]string{
				"POSTGRESQL_HOST":     "db",
				"POSTGRESQL_USER":     "app",
				"POSTGRESQL_PASSWORD": "p@ss",
				"POSTGRESQL_DBNAME":   "errands",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://app:p%40ss@db:5432/errands?sslmode=disable", cfg.DatabaseURL)
			},
		},
		{
			name: "webhook secret falls back to secret key",
			env:  map[string]string{"PAYSTACK_SECRET_KEY": "sk_test_123"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk_test_123", cfg.PaystackWebhookSecret)
			},
		},
		{
			name: "origins are split",
			env:  map[string]string{"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
			},
		},
		{
			name:    "production requires long jwt secret",
			env:     map[string]string{"APP_ENV": "production", "JWT_SECRET": "short"},
			wantErr: "JWT_SECRET",
		},
		{
			name: "production requires webhook secret",
			env: map[string]string{
				"APP_ENV":              "production",
				"JWT_SECRET":           "0123456789abcdef0123456789abcdef",
				"CORS_ALLOWED_ORIGINS": "https://app.example",
			},
			wantErr: "PAYSTACK",
		},
		{
			name:    "eta must be positive",
			env:     map[string]string{"DEFAULT_ETA_MINUTES": "0"},
			wantErr: "DEFAULT_ETA_MINUTES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Parse()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
