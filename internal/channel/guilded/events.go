package guilded

import (
	"encoding/json"
	"time"
)

// Gateway opcodes.
const (
	opEvent         = 0
	opWelcome       = 1
	opResume        = 2
	opInternalError = 8
	opInvalidCursor = 9
)

const eventChatMessageCreated = "ChatMessageCreated"

// frame is one gateway websocket message.
type frame struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  string          `json:"s,omitempty"` // message id usable for replay
	D  json.RawMessage `json:"d,omitempty"`
}

type welcome struct {
	HeartbeatIntervalMs int    `json:"heartbeatIntervalMs"`
	LastMessageID       string `json:"lastMessageId"`
	BotID               string `json:"botId"`
	User                struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

type chatMessage struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type"`
	ServerID           string    `json:"serverId,omitempty"`
	ChannelID          string    `json:"channelId"`
	Content            string    `json:"content,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	CreatedBy          string    `json:"createdBy"`
	CreatedByWebhookID string    `json:"createdByWebhookId,omitempty"`
}

type chatMessageCreated struct {
	ServerID string      `json:"serverId"`
	Message  chatMessage `json:"message"`
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	err := json.Unmarshal(data, &f)
	return f, err
}
