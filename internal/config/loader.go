package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens and keys can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Shapes.APIKey = expandEnvVars(cfg.Shapes.APIKey)
	cfg.Shapes.Username = expandEnvVars(cfg.Shapes.Username)
	if cfg.Channels.Guilded != nil {
		cfg.Channels.Guilded.Token = expandEnvVars(cfg.Channels.Guilded.Token)
	}
	if cfg.Channels.Discord != nil {
		cfg.Channels.Discord.Token = expandEnvVars(cfg.Channels.Discord.Token)
	}
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Shapes.BaseURL == "" {
		cfg.Shapes.BaseURL = DefaultShapesBaseURL
	}
	if cfg.Shapes.Namespace == "" {
		cfg.Shapes.Namespace = DefaultNamespace
	}
	if cfg.Shapes.TimeoutSeconds == 0 {
		cfg.Shapes.TimeoutSeconds = 60
	}
	if cfg.Activation.Store == "" {
		cfg.Activation.Store = "json"
	}
	if cfg.Media.ProbeTimeoutSeconds == 0 {
		cfg.Media.ProbeTimeoutSeconds = 5
	}
	if cfg.Commands.Prefix == "" {
		cfg.Commands.Prefix = "/"
	}
	if cfg.Admin.Bind == "" {
		cfg.Admin.Bind = "127.0.0.1"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 18790
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads the relay's environment variables and overrides
// config values. The secret names match the ones the bot has always used.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GUILDED_TOKEN"); v != "" {
		if cfg.Channels.Guilded == nil {
			cfg.Channels.Guilded = &GuildedConfig{}
		}
		cfg.Channels.Guilded.Token = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		if cfg.Channels.Discord == nil {
			cfg.Channels.Discord = &DiscordConfig{}
		}
		cfg.Channels.Discord.Token = v
	}
	if v := os.Getenv("SHAPES_API_KEY"); v != "" {
		cfg.Shapes.APIKey = v
	}
	if v := os.Getenv("SHAPE_USERNAME"); v != "" {
		cfg.Shapes.Username = v
	}
	if v := os.Getenv("SHAPES_BASE_URL"); v != "" {
		cfg.Shapes.BaseURL = v
	}
	if v := os.Getenv("SHAPERELAY_ADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Admin.Port = port
		}
	}
	if v := os.Getenv("SHAPERELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
