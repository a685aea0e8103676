package config

// Config represents the process configuration, loaded once at startup.
// Runtime-mutable settings (trading mode, model, token budget) live in
// the settings store and shadow the Claude defaults here.
type Config struct {
	// Anthropic API key
	AnthropicAPIKey string `json:"anthropic_api_key" mapstructure:"anthropic_api_key"`

	// KIS app key; presence of this credential gates the real trading mode
	KISAppKey string `json:"kis_app_key" mapstructure:"kis_app_key"`

	// MCP tool server
	MCP MCPConfig `json:"mcp" mapstructure:"mcp"`

	// Claude defaults
	Claude ClaudeConfig `json:"claude" mapstructure:"claude"`

	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Runtime settings persistence path
	SettingsFile string `json:"settings_file" mapstructure:"settings_file"`
}

// MCPConfig holds the KIS trading MCP server launch configuration
type MCPConfig struct {
	Command string   `json:"command" mapstructure:"command"`
	Args    []string `json:"args" mapstructure:"args"`
}

// ClaudeConfig holds default model parameters
type ClaudeConfig struct {
	Model     string `json:"model" mapstructure:"model"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		MCP: MCPConfig{
			Command: "kis-trading-mcp",
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 4096,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// HasLiveCredentials reports whether the KIS app key needed for the
// real trading mode is configured.
func (c *Config) HasLiveCredentials() bool {
	return c.KISAppKey != ""
}
