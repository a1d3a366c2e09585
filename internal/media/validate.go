package media

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/version"
)

// DefaultProbeTimeout bounds a single image probe.
const DefaultProbeTimeout = 5 * time.Second

// HTTPValidator confirms image URLs with a HEAD request.
type HTTPValidator struct {
	client  *http.Client
	timeout time.Duration
	log     *logging.Logger
}

// NewHTTPValidator creates a validator. A nil client uses
// http.DefaultClient; a zero timeout uses DefaultProbeTimeout.
func NewHTTPValidator(client *http.Client, timeout time.Duration, log *logging.Logger) *HTTPValidator {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &HTTPValidator{client: client, timeout: timeout, log: log.Sub("media")}
}

// ValidateImage reports whether url answers a HEAD request with a 2xx
// status and an image/* content type. Every failure is a plain false.
func (v *HTTPValidator) ValidateImage(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		v.log.Debug().Err(err).Str("url", url).Msg("image probe: bad request")
		return false
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Debug().Err(err).Str("url", url).Msg("image probe failed")
		return false
	}
	resp.Body.Close()

	ct := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300 && strings.HasPrefix(ct, "image/")
	if !ok {
		v.log.Debug().Str("url", url).Int("status", resp.StatusCode).Str("contentType", ct).Msg("not an image")
	}
	return ok
}

// TrustValidator accepts every URL. It is used when probing is disabled,
// leaving classification as the only check.
type TrustValidator struct{}

// ValidateImage always returns true.
func (TrustValidator) ValidateImage(context.Context, string) bool { return true }
