// Package discord relays Discord guild and DM messages using discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/logging"
)

const (
	maxContentLen = 2000
	maxEmbeds     = 10
)

// session is the subset of *discordgo.Session used after connecting.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Channel implements domain.Channel for Discord.
type Channel struct {
	cfg config.DiscordConfig
	log *logging.Logger

	mu      sync.RWMutex
	dg      *discordgo.Session
	api     session
	selfID  string
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates a Discord channel from configuration.
func New(cfg config.DiscordConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("discord"),
	}
}

func (c *Channel) ID() string { return "discord" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeDM, domain.ChatTypeGroup},
		Embeds:    true,
		Typing:    true,
		Reply:     true,
	}
}

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "discord",
		AccountID: c.selfID,
		Connected: c.dg != nil && c.dg.DataReady,
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// Start opens the gateway session and blocks until ctx is cancelled.
// discordgo reconnects on its own while the session is open.
func (c *Channel) Start(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + c.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	dg.AddHandler(c.onReady)
	dg.AddHandler(c.onMessageCreate)

	if err := dg.Open(); err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("discord open connection: %w", err)
	}

	c.mu.Lock()
	c.dg = dg
	c.api = dg
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()
	c.log.Info().Msg("connected to Discord")

	<-ctx.Done()
	c.closeSession()
	return ctx.Err()
}

// Stop closes the gateway session.
func (c *Channel) Stop(_ context.Context) error {
	c.closeSession()
	return nil
}

func (c *Channel) closeSession() {
	c.mu.Lock()
	dg := c.dg
	c.dg = nil
	c.running = false
	c.mu.Unlock()

	if dg == nil {
		return
	}
	c.log.Info().Msg("disconnecting from Discord")
	if err := dg.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing Discord session")
	}
}

// Send posts msg to its target channel, as a reply when ReplyToID is set.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	api := c.api
	c.mu.RUnlock()
	if api == nil {
		return errors.New("discord: not connected")
	}
	if msg.To == "" {
		return errors.New("discord: no target specified")
	}

	if _, err := api.ChannelMessageSendComplex(msg.To, buildMessageSend(msg)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	c.log.Debug().Str("to", msg.To).Int("embeds", len(msg.Embeds)).Msg("sent Discord message")
	return nil
}

// Typing triggers the typing indicator in chatID.
func (c *Channel) Typing(_ context.Context, chatID string) error {
	c.mu.RLock()
	api := c.api
	c.mu.RUnlock()
	if api == nil {
		return errors.New("discord: not connected")
	}
	return api.ChannelTyping(chatID)
}

func (c *Channel) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User == nil {
		return
	}
	c.mu.Lock()
	c.selfID = r.User.ID
	c.mu.Unlock()
	c.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord session ready")
}

func (c *Channel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	msg, ok := inboundFromMessage(m.Message, selfID)
	if !ok {
		return
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

// inboundFromMessage converts a gateway message. Messages without an
// author are rejected.
func inboundFromMessage(m *discordgo.Message, selfID string) (domain.InboundMessage, bool) {
	if m == nil || m.Author == nil {
		return domain.InboundMessage{}, false
	}

	chatType := domain.ChatTypeDM
	if m.GuildID != "" {
		chatType = domain.ChatTypeGroup
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return domain.InboundMessage{
		ID:        m.ID,
		ChannelID: "discord",
		From:      m.Author.ID,
		FromName:  displayName(m),
		ChatID:    m.ChannelID,
		ChatType:  chatType,
		Body:      m.Content,
		Timestamp: ts,
		IsSelf:    selfID != "" && m.Author.ID == selfID,
		IsBot:     m.Author.Bot,
	}, true
}

// displayName prefers the guild nickname, then the global display name,
// then the account username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func buildMessageSend(msg domain.OutboundMessage) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: truncate(msg.Body, maxContentLen),
	}
	for i, e := range msg.Embeds {
		if i == maxEmbeds {
			break
		}
		send.Embeds = append(send.Embeds, &discordgo.MessageEmbed{
			Image: &discordgo.MessageEmbedImage{URL: e.ImageURL},
		})
	}
	if msg.ReplyToID != "" {
		send.Reference = &discordgo.MessageReference{
			MessageID: msg.ReplyToID,
			ChannelID: msg.To,
		}
	}
	return send
}

// truncate shortens text to at most limit bytes, cutting on a rune
// boundary and marking the cut with an ellipsis.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit - len("...")
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return strings.TrimRight(text[:cut], " ") + "..."
}
