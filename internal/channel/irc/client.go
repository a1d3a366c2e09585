// Package irc relays IRC channel messages using the girc library.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lrstanley/girc"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/version"
)

// maxLineBytes keeps a PRIVMSG well under the 512-byte protocol limit
// once the prefix and target are added.
const maxLineBytes = 400

// Channel implements domain.Channel for IRC. Only channel messages are
// relayed; private messages are ignored.
type Channel struct {
	cfg    config.IRCConfig
	client *girc.Client
	log    *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string
}

// New creates an IRC channel from configuration.
func New(cfg config.IRCConfig, log *logging.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.Sub("irc"),
	}
}

func (c *Channel) ID() string { return "irc" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeGroup},
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
		ChannelID: "irc",
		AccountID: c.cfg.Nick,
		Connected: c.client != nil && c.client.IsConnected(),
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) port() int {
	switch {
	case c.cfg.Port != 0:
		return c.cfg.Port
	case c.cfg.UseTLS:
		return 6697
	default:
		return 6667
	}
}

// Start connects to the IRC server and blocks until the connection ends
// or ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	gircCfg := girc.Config{
		Server:  c.cfg.Server,
		Port:    c.port(),
		Nick:    c.cfg.Nick,
		User:    c.cfg.Nick,
		Name:    "shaperelay",
		SSL:     c.cfg.UseTLS,
		Version: version.Info(),
	}
	if c.cfg.UseTLS {
		gircCfg.TLSConfig = &tls.Config{ServerName: c.cfg.Server}
	}
	if c.cfg.SASL && c.cfg.Password != "" {
		gircCfg.SASL = &girc.SASLPlain{User: c.cfg.Nick, Pass: c.cfg.Password}
	} else if c.cfg.Password != "" {
		gircCfg.ServerPass = c.cfg.Password
	}

	client := girc.New(gircCfg)
	client.Handlers.Add(girc.CONNECTED, c.onConnected)
	client.Handlers.Add(girc.PRIVMSG, c.onPrivmsg)
	client.Handlers.Add(girc.DISCONNECTED, c.onDisconnected)

	c.mu.Lock()
	c.client = client
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().
		Str("server", c.cfg.Server).
		Int("port", gircCfg.Port).
		Str("nick", c.cfg.Nick).
		Strs("channels", c.cfg.Channels).
		Bool("tls", c.cfg.UseTLS).
		Msg("connecting to IRC")

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Connect()
	}()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		if err != nil {
			c.lastErr = err.Error()
		}
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		client.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Stop sends QUIT if connected.
func (c *Channel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.client.IsConnected() {
		c.log.Info().Msg("disconnecting from IRC")
		c.client.Quit("shaperelay shutting down")
	}
	c.running = false
	return nil
}

// Send writes msg to its target channel. IRC has no embeds, so image
// URLs are sent as plain lines after the text.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return errors.New("irc: not connected")
	}
	if msg.To == "" {
		return errors.New("irc: no target specified")
	}

	lines := outboundLines(msg, maxLineBytes)
	for _, line := range lines {
		client.Cmd.Message(msg.To, line)
	}

	c.log.Debug().Str("to", msg.To).Int("lines", len(lines)).Msg("sent IRC message")
	return nil
}

func (c *Channel) onConnected(client *girc.Client, _ girc.Event) {
	c.log.Info().Str("nick", client.GetNick()).Msg("connected to IRC")
	for _, ch := range c.cfg.Channels {
		c.log.Info().Str("channel", ch).Msg("joining channel")
		client.Cmd.Join(ch)
	}
}

func (c *Channel) onPrivmsg(client *girc.Client, e girc.Event) {
	msg, ok := inboundFromEvent(e, client.GetNick())
	if !ok {
		return
	}
	if c.cfg.OpOnly && !isChannelOp(client, msg.From, msg.ChatID) {
		c.log.Debug().Str("nick", msg.From).Str("channel", msg.ChatID).Msg("ignoring message from non-operator")
		return
	}
	c.deliver(msg)
}

func (c *Channel) onDisconnected(_ *girc.Client, _ girc.Event) {
	c.log.Warn().Msg("disconnected from IRC")
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Channel) deliver(msg domain.InboundMessage) {
	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

// inboundFromEvent converts a channel PRIVMSG. Private messages and
// events without a source are rejected.
func inboundFromEvent(e girc.Event, selfNick string) (domain.InboundMessage, bool) {
	if e.Source == nil || len(e.Params) == 0 || !e.IsFromChannel() {
		return domain.InboundMessage{}, false
	}

	body := e.Last()
	if e.IsAction() {
		body = e.StripAction()
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, taggedBot := e.Tags.Get("bot")

	return domain.InboundMessage{
		ID:        uuid.New().String(),
		ChannelID: "irc",
		From:      e.Source.Name,
		FromName:  e.Source.Name,
		ChatID:    e.Params[0],
		ChatType:  domain.ChatTypeGroup,
		Body:      body,
		Timestamp: ts,
		IsSelf:    strings.EqualFold(e.Source.Name, selfNick),
		IsBot:     taggedBot,
	}, true
}

// isChannelOp reports whether nick has operator (or higher) permissions in
// channel.
func isChannelOp(client *girc.Client, nick, channel string) bool {
	user := client.LookupUser(nick)
	if user == nil {
		return false
	}
	perms, ok := user.Perms.Lookup(channel)
	if !ok {
		return false
	}
	return perms.IsAdmin()
}

// outboundLines flattens msg into PRIVMSG-sized lines: the body's non-empty
// lines followed by one line per embed URL.
func outboundLines(msg domain.OutboundMessage, maxLen int) []string {
	lines := splitMessage(msg.Body, maxLen)
	for _, e := range msg.Embeds {
		lines = append(lines, e.ImageURL)
	}
	return lines
}

// splitMessage breaks text into lines no longer than maxLen bytes. Empty
// lines are dropped because IRC cannot send them, and long lines are cut
// on rune boundaries.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if strings.TrimSpace(line) != "" {
			chunks = append(chunks, line)
		}
	}
	return chunks
}
