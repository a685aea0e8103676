package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an Anthropic API key format
func (v *Validator) ValidateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("anthropic API key cannot be empty")
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
	}
	return nil
}

// ValidateMaxTokens validates the default token budget
func (v *Validator) ValidateMaxTokens(n int) error {
	if n < 256 || n > 32768 {
		return fmt.Errorf("claude max_tokens must be between 256 and 32768, got %d", n)
	}
	return nil
}

// ValidatePort validates the HTTP server port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}

// Validate checks a loaded config for startup-fatal problems
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateAPIKey(cfg.AnthropicAPIKey); err != nil {
		return err
	}
	if err := v.ValidateMaxTokens(cfg.Claude.MaxTokens); err != nil {
		return err
	}
	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		return err
	}
	if cfg.MCP.Command == "" {
		return fmt.Errorf("mcp command cannot be empty")
	}
	return nil
}
