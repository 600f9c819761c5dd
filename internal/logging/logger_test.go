package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"console format", func(c *Config) { c.Format = "console" }, false},
		{"bad format", func(c *Config) { c.Format = "xml" }, true},
		{"bad level", func(c *Config) { c.Level = "loud" }, true},
		{"bad stacktrace level", func(c *Config) { c.Stacktrace.Level = "shout" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, logger)

	// Child loggers share config
	child := logger.Named("router").With()
	assert.NotNil(t, child)

	_, err = NewLogger(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = ContextWithRequestID(ctx, "req-123")
	ctx = ContextWithCompetition(ctx, "titanic")
	ctx = ContextWithUserID(ctx, "user-9")

	fields := ContextFields(ctx)
	assert.Len(t, fields, 3)
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Equal(t, "titanic", CompetitionFromContext(ctx))
	assert.Equal(t, "user-9", UserIDFromContext(ctx))
}
