// Package format turns a provider reply into what the platform sends:
// plain text, image embeds, or both.
package format

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/soyeahso/shaperelay/internal/media"
)

// Kind is the shape of a formatted reply.
type Kind int

const (
	TextOnly Kind = iota
	EmbedsOnly
	TextWithEmbeds
)

func (k Kind) String() string {
	switch k {
	case EmbedsOnly:
		return "embeds"
	case TextWithEmbeds:
		return "text+embeds"
	default:
		return "text"
	}
}

// Reply is the formatted result. Embeds holds confirmed image URLs.
type Reply struct {
	Kind   Kind
	Text   string
	Embeds []string
}

// URLExtractor finds URL candidates in text.
type URLExtractor interface {
	Extract(text string) []media.Candidate
}

// ImageValidator confirms that a URL serves an image.
type ImageValidator interface {
	ValidateImage(ctx context.Context, url string) bool
}

// Formatter builds Replies.
type Formatter struct {
	extractor URLExtractor
	validator ImageValidator
}

// New creates a Formatter.
func New(extractor URLExtractor, validator ImageValidator) *Formatter {
	return &Formatter{extractor: extractor, validator: validator}
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Format builds the reply for raw. Image URLs that validate become embeds
// and are removed from the text; everything else, including video and
// audio links and images that fail validation, stays inline.
func (f *Formatter) Format(ctx context.Context, raw string) Reply {
	if strings.TrimSpace(raw) == "" {
		return Reply{Kind: TextOnly, Text: raw}
	}

	cands := f.extractor.Extract(raw)
	var images []string
	seen := make(map[string]bool)
	for _, c := range cands {
		if c.Kind == media.KindImage && !seen[c.URL] {
			seen[c.URL] = true
			images = append(images, c.URL)
		}
	}
	if len(images) == 0 {
		return Reply{Kind: TextOnly, Text: raw}
	}

	confirmed := f.validateAll(ctx, images)
	if len(confirmed) == 0 {
		return Reply{Kind: TextOnly, Text: raw}
	}

	isConfirmed := make(map[string]bool, len(confirmed))
	for _, u := range confirmed {
		isConfirmed[u] = true
	}
	text := strip(raw, cands, isConfirmed)
	if text == "" {
		return Reply{Kind: EmbedsOnly, Embeds: confirmed}
	}
	return Reply{Kind: TextWithEmbeds, Text: text, Embeds: confirmed}
}

// validateAll probes urls concurrently and returns the ones that passed,
// in their original order.
func (f *Formatter) validateAll(ctx context.Context, urls []string) []string {
	ok := make([]bool, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			ok[i] = f.validator.ValidateImage(ctx, u)
		}(i, u)
	}
	wg.Wait()

	var out []string
	for i, u := range urls {
		if ok[i] {
			out = append(out, u)
		}
	}
	return out
}

// strip removes confirmed URL occurrences from raw along with an
// enclosing <...> or markdown image wrapper, drops lines that only held a
// URL, collapses runs of blank lines and trims.
func strip(raw string, cands []media.Candidate, confirmed map[string]bool) string {
	var b strings.Builder
	touched := make(map[int]bool) // line numbers that lost a URL
	pos := 0
	for _, c := range cands {
		if !confirmed[c.URL] || c.Start < pos {
			continue
		}
		start, end := widen(raw, c.Start, c.End)
		if start < pos {
			start, end = c.Start, c.End
		}
		b.WriteString(raw[pos:start])
		touched[strings.Count(raw[:start], "\n")] = true
		pos = end
	}
	b.WriteString(raw[pos:])

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for i, line := range lines {
		if touched[i] && strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	text := strings.Join(kept, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// widen extends [start,end) over a surrounding <...>, a whole ![alt](...)
// or the (...) of a plain [label](...) link. The label is kept for links.
func widen(s string, start, end int) (int, int) {
	if start > 0 && end < len(s) && s[start-1] == '<' && s[end] == '>' {
		return start - 1, end + 1
	}
	if start >= 2 && end < len(s) && s[start-1] == '(' && s[start-2] == ']' && s[end] == ')' {
		open := labelStart(s, start-2)
		switch {
		case open > 0 && s[open-1] == '!':
			return open - 1, end + 1
		case open >= 0:
			return start - 1, end + 1
		}
	}
	return start, end
}

// labelStart returns the index of the '[' matching the ']' at closing, or
// -1. The search stays on one line and stops at another link's "](".
func labelStart(s string, closing int) int {
	depth := 0
	for i := closing; i >= 0; i-- {
		switch s[i] {
		case '\n':
			return -1
		case ']':
			if i != closing && i+1 < len(s) && s[i+1] == '(' {
				return -1
			}
			depth++
		case '[':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
