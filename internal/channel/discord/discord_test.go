package discord

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/logging"
)

type fakeSession struct {
	sent      []*discordgo.MessageSend
	sentTo    []string
	typed     []string
	sendErr   error
	typingErr error
}

func (s *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sentTo = append(s.sentTo, channelID)
	s.sent = append(s.sent, data)
	return &discordgo.Message{ID: "sent-1", ChannelID: channelID}, nil
}

func (s *fakeSession) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	s.typed = append(s.typed, channelID)
	return s.typingErr
}

func newTestChannel(api session) *Channel {
	c := New(config.DiscordConfig{Token: "t"}, logging.New(&bytes.Buffer{}, "debug"))
	c.api = api
	return c
}

func TestInboundFromMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   "hello",
		Timestamp: ts,
		Author:    &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice A"},
		Member:    &discordgo.Member{Nick: "Ally"},
	}

	msg, ok := inboundFromMessage(m, "bot-1")
	require.True(t, ok)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "discord", msg.ChannelID)
	assert.Equal(t, "u1", msg.From)
	assert.Equal(t, "Ally", msg.FromName)
	assert.Equal(t, "c1", msg.ChatID)
	assert.Equal(t, domain.ChatTypeGroup, msg.ChatType)
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, ts, msg.Timestamp)
	assert.False(t, msg.IsSelf)
	assert.False(t, msg.IsBot)
}

func TestInboundFromMessageDirect(t *testing.T) {
	m := &discordgo.Message{
		ID:        "m2",
		ChannelID: "dm1",
		Content:   "hi",
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
	}
	msg, ok := inboundFromMessage(m, "")
	require.True(t, ok)
	assert.Equal(t, domain.ChatTypeDM, msg.ChatType)
	assert.Equal(t, "alice", msg.FromName)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestInboundFromMessageSelfAndBot(t *testing.T) {
	self := &discordgo.Message{ID: "m", ChannelID: "c", Author: &discordgo.User{ID: "bot-1", Bot: true}}
	msg, ok := inboundFromMessage(self, "bot-1")
	require.True(t, ok)
	assert.True(t, msg.IsSelf)
	assert.True(t, msg.IsBot)

	other := &discordgo.Message{ID: "m", ChannelID: "c", Author: &discordgo.User{ID: "bot-2", Bot: true}}
	msg, ok = inboundFromMessage(other, "bot-1")
	require.True(t, ok)
	assert.False(t, msg.IsSelf)
	assert.True(t, msg.IsBot)
}

func TestInboundFromMessageNoAuthor(t *testing.T) {
	_, ok := inboundFromMessage(&discordgo.Message{ID: "m"}, "")
	assert.False(t, ok)
	_, ok = inboundFromMessage(nil, "")
	assert.False(t, ok)
}

func TestSendReplyWithEmbeds(t *testing.T) {
	api := &fakeSession{}
	c := newTestChannel(api)

	err := c.Send(context.Background(), domain.OutboundMessage{
		ChannelID: "discord",
		To:        "c1",
		Body:      "look",
		ReplyToID: "m1",
		Embeds:    []domain.Embed{{ImageURL: "https://i.imgur.com/a.png"}},
	})
	require.NoError(t, err)

	require.Len(t, api.sent, 1)
	assert.Equal(t, "c1", api.sentTo[0])
	send := api.sent[0]
	assert.Equal(t, "look", send.Content)
	require.Len(t, send.Embeds, 1)
	assert.Equal(t, "https://i.imgur.com/a.png", send.Embeds[0].Image.URL)
	require.NotNil(t, send.Reference)
	assert.Equal(t, "m1", send.Reference.MessageID)
	assert.Equal(t, "c1", send.Reference.ChannelID)
}

func TestSendPlain(t *testing.T) {
	api := &fakeSession{}
	c := newTestChannel(api)

	require.NoError(t, c.Send(context.Background(), domain.OutboundMessage{To: "c1", Body: "hi"}))
	require.Len(t, api.sent, 1)
	assert.Nil(t, api.sent[0].Reference)
	assert.Empty(t, api.sent[0].Embeds)
}

func TestSendErrors(t *testing.T) {
	c := New(config.DiscordConfig{}, logging.New(&bytes.Buffer{}, "silent"))
	assert.EqualError(t, c.Send(context.Background(), domain.OutboundMessage{To: "c1", Body: "x"}), "discord: not connected")

	c = newTestChannel(&fakeSession{})
	assert.EqualError(t, c.Send(context.Background(), domain.OutboundMessage{Body: "x"}), "discord: no target specified")

	boom := errors.New("boom")
	c = newTestChannel(&fakeSession{sendErr: boom})
	err := c.Send(context.Background(), domain.OutboundMessage{To: "c1", Body: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestTyping(t *testing.T) {
	api := &fakeSession{}
	c := newTestChannel(api)
	require.NoError(t, c.Typing(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, api.typed)

	boom := errors.New("typing failed")
	c = newTestChannel(&fakeSession{typingErr: boom})
	assert.ErrorIs(t, c.Typing(context.Background(), "c1"), boom)
}

func TestBuildMessageSendCapsEmbeds(t *testing.T) {
	msg := domain.OutboundMessage{To: "c1"}
	for range 12 {
		msg.Embeds = append(msg.Embeds, domain.Embed{ImageURL: "https://x/y.png"})
	}
	assert.Len(t, buildMessageSend(msg).Embeds, maxEmbeds)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	long := strings.Repeat("a", 2100)
	out := truncate(long, maxContentLen)
	assert.Len(t, out, maxContentLen)
	assert.True(t, strings.HasSuffix(out, "..."))

	// Multi-byte runes are never split.
	out = truncate(strings.Repeat("é", 10), 9)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.True(t, len(out) <= 9)
	assert.Equal(t, "ééé...", out)
}

func TestCapabilities(t *testing.T) {
	c := newTestChannel(&fakeSession{})
	caps := c.Capabilities()
	assert.True(t, caps.Embeds)
	assert.True(t, caps.Typing)
	assert.True(t, caps.Reply)
	assert.Equal(t, "discord", c.ID())
	assert.False(t, c.Status().Connected)
}
