package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	t.Run("valid key", func(t *testing.T) {
		assert.NoError(t, v.ValidateAPIKey("sk-ant-test123"))
	})

	t.Run("invalid key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey("invalid-key"))
	})

	t.Run("empty key", func(t *testing.T) {
		assert.Error(t, v.ValidateAPIKey(""))
	})
}

func TestValidateMaxTokens(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		tokens    int
		shouldErr bool
	}{
		{"minimum", 256, false},
		{"maximum", 32768, false},
		{"typical", 4096, false},
		{"too low", 100, true},
		{"too high", 40000, true},
		{"zero", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateMaxTokens(tt.tokens)
			if tt.shouldErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AnthropicAPIKey = "sk-ant-test123"
		assert.NoError(t, v.Validate(cfg))
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Error(t, v.Validate(cfg))
	})

	t.Run("missing mcp command", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AnthropicAPIKey = "sk-ant-test123"
		cfg.MCP.Command = ""
		assert.Error(t, v.Validate(cfg))
	})
}
