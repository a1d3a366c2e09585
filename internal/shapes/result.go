package shapes

import "strings"

// Outcome classifies a completion call.
type Outcome int

const (
	OK Outcome = iota
	Timeout
	RateLimited
	Failure
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Timeout:
		return "timeout"
	case RateLimited:
		return "rate_limited"
	default:
		return "failure"
	}
}

// User-facing notices for outcomes that are not the shape's own words.
const (
	TimeoutNotice     = "Sorry, the request to the Shape timed out."
	RateLimitedNotice = "Too many requests to the Shapes API. Please try again later."
)

// Request is one user turn sent to the shape.
type Request struct {
	UserID    string // correlation, sent as X-User-Id
	ChannelID string // correlation, sent as X-Channel-Id
	Content   string
}

// Result is what Send returns. Text is set only for OK; Err only for
// Failure.
type Result struct {
	Outcome Outcome
	Text    string
	Err     error
}

// Empty reports an OK result without any visible text.
func (r Result) Empty() bool {
	return r.Outcome == OK && strings.TrimSpace(r.Text) == ""
}

// Notice returns the fixed text to show for Timeout and RateLimited, and
// "" for every other outcome.
func (r Result) Notice() string {
	switch r.Outcome {
	case Timeout:
		return TimeoutNotice
	case RateLimited:
		return RateLimitedNotice
	default:
		return ""
	}
}
