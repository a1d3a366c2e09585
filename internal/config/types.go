package config

// Config is the root configuration for shaperelay.
type Config struct {
	Shapes     ShapesConfig     `yaml:"shapes,omitempty"`
	Channels   ChannelsConfig   `yaml:"channels,omitempty"`
	Activation ActivationConfig `yaml:"activation,omitempty"`
	Media      MediaConfig      `yaml:"media,omitempty"`
	Commands   CommandsConfig   `yaml:"commands,omitempty"`
	Admin      AdminConfig      `yaml:"admin,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// ShapesConfig describes the Shapes completion endpoint and the persona used.
type ShapesConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"`
	Username       string `yaml:"username,omitempty"`  // plain shape username, e.g. "tenshi"
	Namespace      string `yaml:"namespace,omitempty"` // model namespace, "shapesinc"
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// Model returns the model identifier sent to the completion endpoint.
func (s ShapesConfig) Model() string {
	return s.Namespace + "/" + s.Username
}

// ChannelsConfig defines the chat platforms the relay connects to.
type ChannelsConfig struct {
	Guilded *GuildedConfig `yaml:"guilded,omitempty"`
	Discord *DiscordConfig `yaml:"discord,omitempty"`
	IRC     *IRCConfig     `yaml:"irc,omitempty"`
}

// GuildedConfig defines Guilded bot settings.
type GuildedConfig struct {
	Token      string `yaml:"token"`
	APIBaseURL string `yaml:"apiBaseUrl,omitempty"`
	GatewayURL string `yaml:"gatewayUrl,omitempty"`
}

// DiscordConfig defines Discord bot settings.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
	OpOnly   bool     `yaml:"opOnly,omitempty"` // restrict to channel operators
}

// ActivationConfig selects where the set of active channels is persisted.
type ActivationConfig struct {
	Store string `yaml:"store,omitempty"` // "json" | "sqlite"
	Path  string `yaml:"path,omitempty"`
}

// MediaConfig tunes media URL detection.
type MediaConfig struct {
	ImageHosts          []string `yaml:"imageHosts,omitempty"` // added to the built-in allowlist
	ProbeTimeoutSeconds int      `yaml:"probeTimeoutSeconds,omitempty"`
	DisableProbe        bool     `yaml:"disableProbe,omitempty"`
}

// CommandsConfig controls command parsing.
type CommandsConfig struct {
	Prefix string `yaml:"prefix,omitempty"`
}

// AdminConfig controls the optional admin HTTP server.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Bind    string `yaml:"bind,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
