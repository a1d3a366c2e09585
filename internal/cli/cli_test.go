package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/store"
	"github.com/soyeahso/shaperelay/internal/version"
)

// setupHome points SHAPERELAY_HOME at a temp dir and clears the
// environment overrides Load reads.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("SHAPERELAY_HOME", home)
	for _, name := range []string{
		"GUILDED_TOKEN", "DISCORD_TOKEN", "SHAPES_API_KEY", "SHAPE_USERNAME",
		"SHAPES_BASE_URL", "SHAPERELAY_ADMIN_PORT", "SHAPERELAY_LOG_LEVEL",
	} {
		t.Setenv(name, "")
	}
	return home
}

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(body), 0o600))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	setupHome(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.Info()+"\n", out)
}

func TestChannelsActivateListDeactivate(t *testing.T) {
	home := setupHome(t)

	out, err := execute(t, "channels", "activate", "c1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "c1: activated\nc2: activated\n", out)

	out, err = execute(t, "channels", "activate", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1: already active\n", out)

	out, err = execute(t, "channels", "list")
	require.NoError(t, err)
	assert.Equal(t, "c1\nc2\n", out)

	ids, err := store.NewJSONFile(filepath.Join(home, "data", "active_channels.json")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)

	out, err = execute(t, "channels", "deactivate", "c1", "nope")
	require.NoError(t, err)
	assert.Equal(t, "c1: deactivated\nnope: not active\n", out)

	out, err = execute(t, "channels", "list")
	require.NoError(t, err)
	assert.Equal(t, "c2\n", out)
}

func TestChannelsListEmpty(t *testing.T) {
	setupHome(t)
	out, err := execute(t, "channels", "list")
	require.NoError(t, err)
	assert.Equal(t, "No active channels.\n", out)
}

func TestChannelsSQLite(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, "activation:\n  store: sqlite\n")

	_, err := execute(t, "channels", "activate", "room-1")
	require.NoError(t, err)

	out, err := execute(t, "channels", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "CHANNEL")
	assert.Contains(t, out, "room-1")
}

func TestChannelsActivateRequiresArgs(t *testing.T) {
	setupHome(t)
	_, err := execute(t, "channels", "activate")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	home := setupHome(t)

	_, err := execute(t, "config", "validate")
	require.Error(t, err, "secrets are missing")

	writeConfig(t, home, `shapes:
  apiKey: k
  username: tenshi
channels:
  discord:
    token: d
`)
	out, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "Config OK\n", out)

	writeConfig(t, home, `shapes:
  apiKey: k
  username: tenshi
channels:
  discord:
    token: d
commands:
  prefix: "!!"
`)
	out, err = execute(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "commands.prefix")
}

func TestConfigSetGet(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "config", "set", "shapes.username", "tenshi")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(os.Getenv("SHAPERELAY_HOME"), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tenshi", cfg.Shapes.Username)
}

func TestConfigSetRejectsBadValue(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, "admin:\n  port: 18790\n")

	_, err := execute(t, "config", "set", "admin.port", "not-a-number")
	require.Error(t, err)

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 18790, cfg.Admin.Port)
}

func TestConfigGetHidesSecrets(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, "shapes:\n  apiKey: sk-live\n  username: tenshi\n")

	out, err := execute(t, "config", "get", "shapes.apiKey")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-live")

	out, err = execute(t, "config", "get", "shapes.apiKey", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, "sk-live\n", out)

	out, err = execute(t, "config", "get", "shapes")
	require.NoError(t, err)
	assert.Contains(t, out, "username: tenshi")
}

func TestStatusOutput(t *testing.T) {
	home := setupHome(t)
	writeConfig(t, home, `shapes:
  username: tenshi
channels:
  guilded:
    token: g
`)
	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Shape:   tenshi model=shapesinc/tenshi")
	assert.Contains(t, out, "Platforms: guilded")
	assert.Contains(t, out, "Active:  0 channel(s)")
	assert.Contains(t, out, "SHAPES_API_KEY")
}

func TestBuildRelayRegistersConfiguredPlatforms(t *testing.T) {
	home := setupHome(t)
	p, err := config.ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())
	assert.Equal(t, home, p.Base)

	cfg := config.Defaults()
	cfg.Shapes.APIKey = "k"
	cfg.Shapes.Username = "tenshi"
	cfg.Channels.Guilded = &config.GuildedConfig{Token: "g"}
	cfg.Channels.Discord = &config.DiscordConfig{Token: "d"}
	cfg.Channels.IRC = &config.IRCConfig{Server: "irc.example.net", Nick: "tenshi", Channels: []string{"#a"}}
	cfg.Admin.Enabled = true

	r, err := buildRelay(cfg, p, logging.New(&bytes.Buffer{}, "silent"))
	require.NoError(t, err)
	assert.Equal(t, []string{"discord", "guilded", "irc"}, r.platforms.List())
	assert.NotNil(t, r.admin)

	r.shutdown()
}

func TestBuildRelaySkipsBlankTokens(t *testing.T) {
	setupHome(t)
	p, err := config.ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())

	cfg := config.Defaults()
	cfg.Channels.Guilded = &config.GuildedConfig{}
	cfg.Activation.Store = "sqlite"

	r, err := buildRelay(cfg, p, logging.New(&bytes.Buffer{}, "silent"))
	require.NoError(t, err)
	assert.Empty(t, r.platforms.List())
	assert.Nil(t, r.admin)
	assert.FileExists(t, filepath.Join(p.Data, "shaperelay.db"))

	r.shutdown()
}
