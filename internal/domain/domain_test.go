package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set", "Alice", "Alice"},
		{"empty", "", "Unknown User"},
		{"whitespace", "   ", "Unknown User"},
		{"trimmed", " Bob ", "Bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := InboundMessage{FromName: tt.in}
			assert.Equal(t, tt.want, msg.DisplayName())
		})
	}
}

func TestOutboundIsEmpty(t *testing.T) {
	assert.True(t, OutboundMessage{}.IsEmpty())
	assert.True(t, OutboundMessage{Body: " \n "}.IsEmpty())
	assert.False(t, OutboundMessage{Body: "hi"}.IsEmpty())
	assert.False(t, OutboundMessage{Embeds: []Embed{{ImageURL: "https://i.imgur.com/a.png"}}}.IsEmpty())
}

func TestOutboundMessageJSON_OmitsEmpty(t *testing.T) {
	data, err := json.Marshal(OutboundMessage{ChannelID: "guilded", To: "c1", Body: "hi"})
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, "replyToId")
	assert.NotContains(t, raw, "embeds")
}

func TestInboundMessageJSON_Flags(t *testing.T) {
	data, err := json.Marshal(InboundMessage{ID: "m1", ChannelID: "discord", ChatID: "c1", IsBot: true})
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"isBot":true`)
	assert.NotContains(t, raw, "isSelf")
}
