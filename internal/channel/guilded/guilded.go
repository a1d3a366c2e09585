// Package guilded relays Guilded server chat over the bot websocket gateway
// and REST API.
package guilded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/version"
)

// DefaultGatewayURL is the Guilded bot websocket endpoint.
const DefaultGatewayURL = "wss://www.guilded.gg/websocket/v1"

const (
	defaultHeartbeat = 22500 * time.Millisecond
	minBackoff       = 2 * time.Second
	maxBackoff       = time.Minute
	lookupTimeout    = 3 * time.Second
	maxMembers       = 1024
	writeWait        = 10 * time.Second
)

// Channel implements domain.Channel for Guilded.
type Channel struct {
	cfg    config.GuildedConfig
	api    *apiClient
	dialer *websocket.Dialer
	log    *logging.Logger

	retryMin time.Duration

	mu            sync.RWMutex
	handler       func(msg domain.InboundMessage)
	conn          *websocket.Conn
	cancel        context.CancelFunc
	botID         string
	lastMessageID string
	running       bool
	connected     bool
	lastErr       string

	members *memberCache
}

// New creates a Guilded channel from configuration.
func New(cfg config.GuildedConfig, log *logging.Logger) *Channel {
	log = log.Sub("guilded")
	return &Channel{
		cfg:      cfg,
		api:      newAPIClient(cfg.APIBaseURL, cfg.Token, log),
		dialer:   websocket.DefaultDialer,
		log:      log,
		retryMin: minBackoff,
		members:  newMemberCache(maxMembers),
	}
}

func (c *Channel) ID() string { return "guilded" }

func (c *Channel) Capabilities() domain.ChannelCapabilities {
	return domain.ChannelCapabilities{
		ChatTypes: []domain.ChatType{domain.ChatTypeGroup},
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
		ChannelID: "guilded",
		AccountID: c.botID,
		Connected: c.connected,
		Running:   c.running,
		LastError: c.lastErr,
	}
}

func (c *Channel) gatewayURL() string {
	if c.cfg.GatewayURL != "" {
		return c.cfg.GatewayURL
	}
	return DefaultGatewayURL
}

// Start holds a gateway connection open until parent is cancelled or Stop
// is called, reconnecting with exponential backoff. Events missed while
// disconnected are replayed from the last seen message id.
func (c *Channel) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.running = true
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.connected = false
		c.mu.Unlock()
	}()

	backoff := c.retryMin
	for {
		started := time.Now()
		err := c.runConn(ctx)
		if ctx.Err() != nil {
			return parent.Err()
		}
		if err != nil {
			c.setErr(err)
			c.log.Warn().Err(err).Dur("retryIn", backoff).Msg("gateway connection lost")
		}
		if time.Since(started) > maxBackoff {
			backoff = c.retryMin
		}

		select {
		case <-ctx.Done():
			return parent.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Stop closes the current gateway connection and ends Start.
func (c *Channel) Stop(_ context.Context) error {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		defer cancel()
	}
	if conn != nil {
		c.log.Info().Msg("disconnecting from Guilded")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		return conn.Close()
	}
	return nil
}

func (c *Channel) runConn(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)
	header.Set("User-Agent", version.UserAgent())
	c.mu.RLock()
	if c.lastMessageID != "" {
		header.Set("guilded-last-message-id", c.lastMessageID)
	}
	c.mu.RUnlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.gatewayURL(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("guilded dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("guilded dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastErr = ""
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
	}()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	var pingOnce sync.Once
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("guilded read: %w", err)
		}
		f, err := decodeFrame(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("malformed gateway frame")
			continue
		}

		switch f.Op {
		case opWelcome:
			var w welcome
			if err := json.Unmarshal(f.D, &w); err != nil {
				return fmt.Errorf("guilded welcome: %w", err)
			}
			c.mu.Lock()
			c.botID = w.BotID
			c.mu.Unlock()
			c.log.Info().Str("botId", w.BotID).Str("name", w.User.Name).Msg("connected to Guilded")
			interval := time.Duration(w.HeartbeatIntervalMs) * time.Millisecond
			if interval <= 0 {
				interval = defaultHeartbeat
			}
			pingOnce.Do(func() { go c.heartbeat(connCtx, conn, interval) })
		case opEvent:
			if f.S != "" {
				c.mu.Lock()
				c.lastMessageID = f.S
				c.mu.Unlock()
			}
			c.handleEvent(ctx, f)
		case opResume:
			c.log.Debug().Msg("gateway replay complete")
		case opInvalidCursor:
			c.mu.Lock()
			c.lastMessageID = ""
			c.mu.Unlock()
			return errors.New("guilded: replay cursor rejected")
		case opInternalError:
			return errors.New("guilded: gateway internal error")
		}
	}
}

func (c *Channel) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debug().Err(err).Msg("heartbeat failed")
				conn.Close()
				return
			}
		}
	}
}

func (c *Channel) handleEvent(ctx context.Context, f frame) {
	if f.T != eventChatMessageCreated {
		return
	}
	var ev chatMessageCreated
	if err := json.Unmarshal(f.D, &ev); err != nil {
		c.log.Warn().Err(err).Msg("malformed ChatMessageCreated")
		return
	}

	c.mu.RLock()
	handler := c.handler
	botID := c.botID
	c.mu.RUnlock()
	if handler == nil {
		return
	}

	msg := inboundFromEvent(ev, botID)
	if !msg.IsSelf && !msg.IsBot {
		c.resolveAuthor(ctx, ev.ServerID, &msg)
	}
	handler(msg)
}

// resolveAuthor fills in the display name and bot flag from the server
// member record. Lookup failures leave the message as is.
func (c *Channel) resolveAuthor(ctx context.Context, serverID string, msg *domain.InboundMessage) {
	if serverID == "" || msg.From == "" {
		return
	}
	m, ok := c.members.get(serverID, msg.From)
	if !ok {
		lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()
		var err error
		m, err = c.api.member(lookupCtx, serverID, msg.From)
		if err != nil {
			c.log.Debug().Err(err).Str("user", msg.From).Msg("member lookup failed")
			return
		}
		c.members.put(serverID, msg.From, m)
	}
	msg.IsBot = m.User.Type == "bot"
	switch {
	case m.Nickname != "":
		msg.FromName = m.Nickname
	case m.User.Name != "":
		msg.FromName = m.User.Name
	}
}

// inboundFromEvent converts a ChatMessageCreated event. Webhook posts
// count as bot messages.
func inboundFromEvent(ev chatMessageCreated, botID string) domain.InboundMessage {
	m := ev.Message
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return domain.InboundMessage{
		ID:        m.ID,
		ChannelID: "guilded",
		From:      m.CreatedBy,
		ChatID:    m.ChannelID,
		ChatType:  domain.ChatTypeGroup,
		Body:      m.Content,
		Timestamp: ts,
		IsSelf:    botID != "" && m.CreatedBy == botID,
		IsBot:     m.CreatedByWebhookID != "",
	}
}

// Send posts msg as a reply when ReplyToID is set.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if msg.To == "" {
		return errors.New("guilded: no target specified")
	}
	req := createMessageRequest{Content: msg.Body}
	for _, e := range msg.Embeds {
		req.Embeds = append(req.Embeds, embed{Image: &embedImage{URL: e.ImageURL}})
	}
	if msg.ReplyToID != "" {
		req.ReplyMessageIDs = []string{msg.ReplyToID}
	}

	id, err := c.api.createMessage(ctx, msg.To, req)
	if err != nil {
		return err
	}
	c.log.Debug().Str("to", msg.To).Str("id", id).Int("embeds", len(req.Embeds)).Msg("sent Guilded message")
	return nil
}

// Typing shows the typing indicator in chatID.
func (c *Channel) Typing(ctx context.Context, chatID string) error {
	return c.api.typing(ctx, chatID)
}

func (c *Channel) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
}

// memberCache remembers member lookups per server, evicting the oldest
// entry once full.
type memberCache struct {
	mu      sync.Mutex
	limit   int
	entries map[string]serverMember
	order   []string
}

func newMemberCache(limit int) *memberCache {
	return &memberCache{limit: limit, entries: make(map[string]serverMember)}
}

func (m *memberCache) get(serverID, userID string) (serverMember, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[serverID+"/"+userID]
	return v, ok
}

func (m *memberCache) put(serverID, userID string, v serverMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := serverID + "/" + userID
	if _, ok := m.entries[key]; !ok {
		if len(m.order) >= m.limit {
			delete(m.entries, m.order[0])
			m.order = m.order[1:]
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = v
}

func (m *memberCache) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
