package domain

import "context"

// ChannelCapabilities describes what a platform adapter supports.
type ChannelCapabilities struct {
	ChatTypes []ChatType `json:"chatTypes"`
	Embeds    bool       `json:"embeds,omitempty"`
	Typing    bool       `json:"typing,omitempty"`
	Reply     bool       `json:"reply,omitempty"`
}

// ChannelStatus reports the runtime state of a platform adapter.
type ChannelStatus struct {
	ChannelID string `json:"channelId"`
	AccountID string `json:"accountId,omitempty"`
	Connected bool   `json:"connected"`
	Running   bool   `json:"running"`
	LastError string `json:"lastError,omitempty"`
}

// Channel is the interface every chat platform adapter satisfies.
type Channel interface {
	// ID returns the platform identifier (e.g., "guilded", "irc").
	ID() string

	// Capabilities returns what this platform supports.
	Capabilities() ChannelCapabilities

	// Start connects and begins listening for messages. It blocks until
	// ctx is cancelled or the connection fails for good.
	Start(ctx context.Context) error

	// Stop gracefully disconnects.
	Stop(ctx context.Context) error

	// Send delivers an outbound message.
	Send(ctx context.Context, msg OutboundMessage) error

	// OnMessage registers a handler for inbound messages.
	OnMessage(handler func(msg InboundMessage))
}

// Typer is implemented by platforms that can show a typing indicator.
type Typer interface {
	Typing(ctx context.Context, chatID string) error
}
