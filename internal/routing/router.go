// Package routing decides what to do with each inbound chat message:
// run a slash command, forward it to the shape, or ignore it.
package routing

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/soyeahso/shaperelay/internal/channel"
	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/format"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/shapes"
)

const typingTimeout = 5 * time.Second

// ActivationStore is the part of activation.Store the router needs.
type ActivationStore interface {
	IsActive(chatID string) bool
	Activate(chatID string) (already bool)
	Deactivate(chatID string) (wasActive bool)
}

// Provider sends one user turn to the shape.
type Provider interface {
	Send(ctx context.Context, req shapes.Request) shapes.Result
}

// ReplyFormatter turns shape text into a platform reply.
type ReplyFormatter interface {
	Format(ctx context.Context, raw string) format.Reply
}

// Config holds the router's static settings.
type Config struct {
	Shape  string // shape username shown in replies
	Prefix string // command prefix, "/" when empty
}

// Stats counts what the router has done since start.
type Stats struct {
	Received  int64 `json:"received"`
	Commands  int64 `json:"commands"`
	Forwarded int64 `json:"forwarded"`
	Failures  int64 `json:"failures"`
}

// Router routes inbound messages to commands or the shape and sends the
// replies back through the originating platform.
type Router struct {
	channels  *channel.Registry
	store     ActivationStore
	provider  Provider
	formatter ReplyFormatter
	shape     string
	prefix    string
	queue     *serialQueue
	log       *logging.Logger

	received  atomic.Int64
	commands  atomic.Int64
	forwarded atomic.Int64
	failures  atomic.Int64
}

// NewRouter creates a message router.
func NewRouter(
	channels *channel.Registry,
	store ActivationStore,
	provider Provider,
	formatter ReplyFormatter,
	cfg Config,
	log *logging.Logger,
) *Router {
	if cfg.Prefix == "" {
		cfg.Prefix = "/"
	}
	return &Router{
		channels:  channels,
		store:     store,
		provider:  provider,
		formatter: formatter,
		shape:     cfg.Shape,
		prefix:    cfg.Prefix,
		queue:     newSerialQueue(),
		log:       log.Sub("routing"),
	}
}

// Wire registers the router as the message handler on every platform.
// Messages from one chat are handled in the order they arrive; different
// chats are handled concurrently.
func (r *Router) Wire(ctx context.Context) {
	for _, id := range r.channels.List() {
		ch, ok := r.channels.Get(id)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg domain.InboundMessage) {
			r.Enqueue(ctx, msg)
		})
		r.log.Debug().Str("platform", id).Msg("wired message handler")
	}
}

// Enqueue schedules msg behind earlier messages from the same chat.
func (r *Router) Enqueue(ctx context.Context, msg domain.InboundMessage) {
	r.queue.Do(msg.ChannelID+"\x00"+msg.ChatID, func() {
		r.HandleInbound(ctx, msg)
	})
}

// Wait blocks until every enqueued message has been handled.
func (r *Router) Wait() {
	r.queue.Wait()
}

// Stats returns a snapshot of the router's counters.
func (r *Router) Stats() Stats {
	return Stats{
		Received:  r.received.Load(),
		Commands:  r.commands.Load(),
		Forwarded: r.forwarded.Load(),
		Failures:  r.failures.Load(),
	}
}

// HandleInbound processes one inbound message. Nothing that goes wrong
// here reaches the platform: failures become a reply and a log entry.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) {
	if msg.IsSelf || msg.IsBot || strings.TrimSpace(msg.Body) == "" {
		return
	}
	r.received.Add(1)

	if name, args, ok := parseCommand(strings.TrimSpace(msg.Body), r.prefix); ok {
		cmd, known := commands[name]
		if !known {
			r.log.Debug().Str("chat", msg.ChatID).Str("command", name).Msg("ignoring unknown command")
			return
		}
		r.commands.Add(1)
		defer r.recoverTo(ctx, msg, commandFailText(cmd.name, r.shape))
		r.handleCommand(ctx, msg, cmd, args)
		return
	}

	if !r.store.IsActive(msg.ChatID) {
		return
	}
	defer r.recoverTo(ctx, msg, ordinaryFailMsg)
	r.handleOrdinary(ctx, msg)
}

// recoverTo turns a panic in a handler into an apology.
func (r *Router) recoverTo(ctx context.Context, msg domain.InboundMessage, apology string) {
	p := recover()
	if p == nil {
		return
	}
	r.failures.Add(1)
	r.log.Error().
		Str("panic", fmt.Sprint(p)).
		Str("stack", string(debug.Stack())).
		Str("platform", msg.ChannelID).
		Str("chat", msg.ChatID).
		Msg("message handler panicked")
	r.sendText(ctx, msg, apology)
}

func (r *Router) handleCommand(ctx context.Context, msg domain.InboundMessage, cmd command, args string) {
	log := r.log.With("platform", msg.ChannelID, "chat", msg.ChatID, "user", msg.From, "command", cmd.name)

	switch cmd.name {
	case "activate":
		if r.store.Activate(msg.ChatID) {
			r.sendText(ctx, msg, fmt.Sprintf(alreadyActiveMsg, r.shape))
			return
		}
		log.Info().Msg("relay activated")
		r.sendText(ctx, msg, fmt.Sprintf(activatedMsg, r.shape))
		return
	case "deactivate":
		if !r.store.Deactivate(msg.ChatID) {
			r.sendText(ctx, msg, notActiveMsg)
			return
		}
		log.Info().Msg("relay deactivated")
		r.sendText(ctx, msg, fmt.Sprintf(deactivatedMsg, r.shape))
		return
	}

	if !r.store.IsActive(msg.ChatID) {
		r.sendText(ctx, msg, notActiveMsg)
		return
	}
	if cmd.requiresArgs && args == "" {
		r.sendText(ctx, msg, usageText(cmd.name))
		return
	}

	content := cmd.shapeContent(args)
	log.Info().Str("content", content).Msg("sending command to shape")
	r.typing(ctx, msg)

	res := r.provider.Send(ctx, shapes.Request{UserID: msg.From, ChannelID: msg.ChatID, Content: content})
	switch {
	case res.Outcome == shapes.Failure:
		r.failures.Add(1)
		log.Error().Err(res.Err).Msg("shape command failed")
		r.sendText(ctx, msg, commandFailText(cmd.name, r.shape))
	case res.Notice() != "":
		log.Warn().Str("outcome", res.Outcome.String()).Msg("shape command not completed")
		r.sendText(ctx, msg, res.Notice())
	case res.Empty():
		switch {
		case cmd.name == "reset":
			r.sendText(ctx, msg, fmt.Sprintf(resetMsg, r.shape))
		case cmd.maySilent:
			r.sendText(ctx, msg, silentText(cmd.name, r.shape))
		default:
			r.sendText(ctx, msg, noTextText(cmd.name, r.shape))
		}
	default:
		if !r.sendFormatted(ctx, msg, res.Text) {
			r.sendText(ctx, msg, commandFailText(cmd.name, r.shape))
		}
	}
}

func (r *Router) handleOrdinary(ctx context.Context, msg domain.InboundMessage) {
	log := r.log.With("platform", msg.ChannelID, "chat", msg.ChatID, "user", msg.From)
	content := msg.DisplayName() + ": " + msg.Body
	log.Debug().Str("content", content).Msg("forwarding message to shape")
	r.forwarded.Add(1)
	r.typing(ctx, msg)

	res := r.provider.Send(ctx, shapes.Request{UserID: msg.From, ChannelID: msg.ChatID, Content: content})
	switch {
	case res.Outcome == shapes.Failure:
		r.failures.Add(1)
		log.Error().Err(res.Err).Msg("shape request failed")
		r.sendText(ctx, msg, ordinaryFailMsg)
	case res.Notice() != "":
		log.Warn().Str("outcome", res.Outcome.String()).Msg("shape request not completed")
		r.sendText(ctx, msg, res.Notice())
	case res.Empty():
		log.Info().Msg("shape returned no reply")
	default:
		if !r.sendFormatted(ctx, msg, res.Text) {
			r.sendText(ctx, msg, ordinaryFailMsg)
		}
	}
}

// typing shows the typing indicator where supported. Failures only log.
func (r *Router) typing(ctx context.Context, msg domain.InboundMessage) {
	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		return
	}
	typer, ok := ch.(domain.Typer)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, typingTimeout)
	defer cancel()
	if err := typer.Typing(ctx, msg.ChatID); err != nil {
		r.log.Warn().Err(err).Str("platform", msg.ChannelID).Str("chat", msg.ChatID).Msg("typing indicator failed")
	}
}

// sendFormatted formats text and sends it. It reports whether the send
// succeeded.
func (r *Router) sendFormatted(ctx context.Context, msg domain.InboundMessage, text string) bool {
	reply := r.formatter.Format(ctx, text)
	out := domain.OutboundMessage{Body: reply.Text}
	for _, u := range reply.Embeds {
		out.Embeds = append(out.Embeds, domain.Embed{ImageURL: u})
	}
	r.log.Debug().Str("chat", msg.ChatID).Str("kind", reply.Kind.String()).Int("embeds", len(out.Embeds)).Msg("reply formatted")
	return r.send(ctx, msg, out)
}

func (r *Router) sendText(ctx context.Context, msg domain.InboundMessage, text string) {
	r.send(ctx, msg, domain.OutboundMessage{Body: text})
}

func (r *Router) send(ctx context.Context, msg domain.InboundMessage, out domain.OutboundMessage) bool {
	ch, ok := r.channels.Get(msg.ChannelID)
	if !ok {
		r.log.Error().Str("platform", msg.ChannelID).Msg("platform not found for reply")
		return false
	}
	out.ChannelID = msg.ChannelID
	out.To = msg.ChatID
	out.ReplyToID = msg.ID
	if err := ch.Send(ctx, out); err != nil {
		r.log.Error().Err(err).
			Str("platform", msg.ChannelID).
			Str("chat", msg.ChatID).
			Msg("failed to send reply")
		return false
	}
	return true
}
