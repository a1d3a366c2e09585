package guilded

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/version"
)

// DefaultAPIBaseURL is the Guilded bot REST endpoint.
const DefaultAPIBaseURL = "https://www.guilded.gg/api/v1"

// apiClient talks to the Guilded REST API. Rate-limited and 5xx responses
// are retried by go-retryablehttp, honouring Retry-After. Member lookups
// run inside the gateway read loop and use lookup, which never retries.
type apiClient struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	lookup  *retryablehttp.Client
}

func newAPIClient(baseURL, token string, log *logging.Logger) *apiClient {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = leveledLogger{log: log}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	lc := retryablehttp.NewClient()
	lc.HTTPClient = rc.HTTPClient
	lc.RetryMax = 0
	lc.Logger = rc.Logger
	lc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    rc,
		lookup:  lc,
	}
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("guilded api %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

type embedImage struct {
	URL string `json:"url"`
}

type embed struct {
	Image *embedImage `json:"image,omitempty"`
}

type createMessageRequest struct {
	Content         string   `json:"content,omitempty"`
	Embeds          []embed  `json:"embeds,omitempty"`
	ReplyMessageIDs []string `json:"replyMessageIds,omitempty"`
}

type createMessageResponse struct {
	Message chatMessage `json:"message"`
}

type memberUser struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"` // "bot" | "user"
	Name string `json:"name"`
}

type serverMember struct {
	User     memberUser `json:"user"`
	Nickname string     `json:"nickname,omitempty"`
}

type serverMemberResponse struct {
	Member serverMember `json:"member"`
}

// createMessage posts a message to channelID and returns the created id.
func (a *apiClient) createMessage(ctx context.Context, channelID string, req createMessageRequest) (string, error) {
	var resp createMessageResponse
	if err := a.do(ctx, a.http, http.MethodPost, "/channels/"+channelID+"/messages", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.ID, nil
}

// typing shows the typing indicator in channelID.
func (a *apiClient) typing(ctx context.Context, channelID string) error {
	return a.do(ctx, a.http, http.MethodPut, "/channels/"+channelID+"/typing", nil, nil)
}

// member fetches a server member.
func (a *apiClient) member(ctx context.Context, serverID, userID string) (serverMember, error) {
	var resp serverMemberResponse
	if err := a.do(ctx, a.lookup, http.MethodGet, "/servers/"+serverID+"/members/"+userID, nil, &resp); err != nil {
		return serverMember{}, err
	}
	return resp.Member, nil
}

func (a *apiClient) do(ctx context.Context, client *retryablehttp.Client, method, path string, in, out any) error {
	var body any
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = data
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("guilded api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

// leveledLogger routes retryablehttp's logging into zerolog.
type leveledLogger struct {
	log *logging.Logger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.log.Warn().Fields(kv).Msg(msg) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.log.Warn().Fields(kv).Msg(msg) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.log.Debug().Fields(kv).Msg(msg) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.log.Debug().Fields(kv).Msg(msg) }
