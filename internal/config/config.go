package config

import (
	"fmt"
	"strings"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default endpoint and persona namespace for shapes.inc.
const (
	DefaultShapesBaseURL = "https://api.shapes.inc/v1"
	DefaultNamespace     = "shapesinc"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Shapes: ShapesConfig{
			BaseURL:        DefaultShapesBaseURL,
			Namespace:      DefaultNamespace,
			TimeoutSeconds: 60,
		},
		Activation: ActivationConfig{
			Store: "json",
		},
		Media: MediaConfig{
			ProbeTimeoutSeconds: 5,
		},
		Commands: CommandsConfig{
			Prefix: "/",
		},
		Admin: AdminConfig{
			Bind: "127.0.0.1",
			Port: 18790,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// RequireSecrets reports the first missing secret the relay cannot start
// without: a platform token, the Shapes API key and the shape username.
func RequireSecrets(cfg *Config) error {
	var missing []string
	if !hasPlatform(cfg) {
		missing = append(missing, "platform token (GUILDED_TOKEN, DISCORD_TOKEN or channels.irc)")
	}
	if cfg.Shapes.APIKey == "" {
		missing = append(missing, "SHAPES_API_KEY")
	}
	if cfg.Shapes.Username == "" {
		missing = append(missing, "SHAPE_USERNAME")
	}
	if len(missing) > 0 {
		return &ConfigError{Message: "missing required settings: " + strings.Join(missing, ", ")}
	}
	return nil
}

func hasPlatform(cfg *Config) bool {
	c := cfg.Channels
	return (c.Guilded != nil && c.Guilded.Token != "") ||
		(c.Discord != nil && c.Discord.Token != "") ||
		c.IRC != nil
}
