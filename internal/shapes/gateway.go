// Package shapes talks to the Shapes completion API, an OpenAI-compatible
// endpoint where the model name selects the shape.
package shapes

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/version"
)

// DefaultTimeout bounds one completion call.
const DefaultTimeout = 60 * time.Second

type correlationKey struct{}

type correlation struct {
	userID    string
	channelID string
}

// correlationTransport copies the per-request user and channel ids from
// the context onto the outgoing request.
type correlationTransport struct {
	base http.RoundTripper
}

func (t *correlationTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	if c, ok := req.Context().Value(correlationKey{}).(correlation); ok {
		if c.userID != "" {
			req.Header.Set("X-User-Id", c.userID)
		}
		if c.channelID != "" {
			req.Header.Set("X-Channel-Id", c.channelID)
		}
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Gateway sends user turns to one shape.
type Gateway struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logging.Logger
}

// Option customizes a Gateway.
type Option func(*gatewayOptions)

type gatewayOptions struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *gatewayOptions) { o.timeout = d }
}

// WithTransport sets the HTTP transport used underneath the correlation
// headers.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *gatewayOptions) { o.transport = rt }
}

// New creates a Gateway for the shape named in cfg.
func New(cfg config.ShapesConfig, log *logging.Logger, opts ...Option) *Gateway {
	o := gatewayOptions{timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Transport: &correlationTransport{base: o.transport}}

	return &Gateway{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model(),
		timeout: o.timeout,
		log:     log.Sub("shapes"),
	}
}

// Model returns the model identifier requests are sent with.
func (g *Gateway) Model() string { return g.model }

// Send posts req.Content as the only user message. Errors are reported
// through the Result, never returned.
func (g *Gateway) Send(ctx context.Context, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, correlationKey{}, correlation{userID: req.UserID, channelID: req.ChannelID})

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Content},
		},
	})
	elapsed := time.Since(start)

	if err != nil {
		res := classify(ctx, err)
		g.log.Debug().
			Err(err).
			Str("outcome", res.Outcome.String()).
			Str("user", req.UserID).
			Str("chat", req.ChannelID).
			Dur("elapsed", elapsed).
			Msg("completion failed")
		return res
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	g.log.Debug().
		Str("user", req.UserID).
		Str("chat", req.ChannelID).
		Int("choices", len(resp.Choices)).
		Int("chars", len(text)).
		Dur("elapsed", elapsed).
		Msg("completion received")
	return Result{Outcome: OK, Text: text}
}

// classify maps a client error onto an Outcome.
func classify(ctx context.Context, err error) Result {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{Outcome: Timeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Result{Outcome: Timeout}
	}

	if statusCode(err) == http.StatusTooManyRequests {
		return Result{Outcome: RateLimited}
	}
	return Result{Outcome: Failure, Err: err}
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
