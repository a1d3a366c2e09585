package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
// Missing secrets are reported by RequireSecrets, not here.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Shapes validation
	if cfg.Shapes.BaseURL != "" {
		if u, err := url.Parse(cfg.Shapes.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, ValidationIssue{
				Path:    "shapes.baseUrl",
				Message: fmt.Sprintf("must be an absolute URL, got %q", cfg.Shapes.BaseURL),
			})
		}
	}
	if cfg.Shapes.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "shapes.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Shapes.TimeoutSeconds),
		})
	}

	// Activation validation
	validStores := []string{"json", "sqlite"}
	if cfg.Activation.Store != "" && !slices.Contains(validStores, cfg.Activation.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "activation.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Activation.Store),
		})
	}

	if cfg.Media.ProbeTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "media.probeTimeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Media.ProbeTimeoutSeconds),
		})
	}

	if len(cfg.Commands.Prefix) > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "commands.prefix",
			Message: fmt.Sprintf("must be a single character, got %q", cfg.Commands.Prefix),
		})
	}

	// Admin validation
	if cfg.Admin.Port < 0 || cfg.Admin.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "admin.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Admin.Port),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// IRC validation (only if configured)
	if cfg.Channels.IRC != nil {
		irc := cfg.Channels.IRC
		if irc.Server == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.server",
				Message: "server is required",
			})
		}
		if irc.Nick == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.nick",
				Message: "nick is required",
			})
		}
		if irc.Port < 0 || irc.Port > 65535 {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.port",
				Message: fmt.Sprintf("port must be 0-65535, got %d", irc.Port),
			})
		}
		if irc.SASL && irc.Password == "" {
			issues = append(issues, ValidationIssue{
				Path:    "channels.irc.sasl",
				Message: "SASL requires a password to be set",
			})
		}
	}

	return issues
}
