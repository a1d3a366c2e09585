package domain

import (
	"strings"
	"time"
)

// ChatType classifies the conversation context.
type ChatType string

const (
	ChatTypeDM    ChatType = "dm"
	ChatTypeGroup ChatType = "group"
)

// UnknownUser is used when a platform cannot resolve the author's name.
const UnknownUser = "Unknown User"

// InboundMessage is a message received from a platform.
type InboundMessage struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"` // platform, e.g. "guilded"
	From      string    `json:"from"`
	FromName  string    `json:"fromName,omitempty"`
	ChatID    string    `json:"chatId"` // platform channel/room the message was posted in
	ChatType  ChatType  `json:"chatType"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	IsSelf    bool      `json:"isSelf,omitempty"`
	IsBot     bool      `json:"isBot,omitempty"`
}

// DisplayName returns FromName, falling back to UnknownUser.
func (m InboundMessage) DisplayName() string {
	if name := strings.TrimSpace(m.FromName); name != "" {
		return name
	}
	return UnknownUser
}

// Embed is a rich attachment rendered by the platform. Only images are used.
type Embed struct {
	ImageURL string `json:"imageUrl"`
}

// OutboundMessage is a message to be sent via a platform.
type OutboundMessage struct {
	ChannelID string  `json:"channelId"`
	To        string  `json:"to"`
	Body      string  `json:"body,omitempty"`
	ReplyToID string  `json:"replyToId,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// IsEmpty reports whether there is nothing to send.
func (m OutboundMessage) IsEmpty() bool {
	return strings.TrimSpace(m.Body) == "" && len(m.Embeds) == 0
}
