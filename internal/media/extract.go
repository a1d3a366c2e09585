// Package media finds URLs in provider replies, decides what kind of media
// they point at and checks that image URLs really serve images.
package media

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern is deliberately permissive: optional scheme, dotted host with
// an alphabetic TLD, optional port and path. Trailing punctuation is
// trimmed afterwards.
var urlPattern = regexp.MustCompile("(?i)\\b(?:https?://)?(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\\.)+[a-z]{2,63}(?::\\d{1,5})?(?:/[^\\s<>\"'`]*)?")

const trailingPunct = ".,;:!?'\"*~)]}"

// Candidate is one URL-shaped substring found in text.
type Candidate struct {
	Raw   string // as written in the text
	URL   string // normalized, always with a scheme
	Start int    // byte offset of Raw in the text
	End   int
	Kind  Kind
}

// Extractor locates URLs and classifies them.
type Extractor struct {
	classifier *Classifier
}

// NewExtractor returns an Extractor using c for classification. A nil c
// uses the built-in tables.
func NewExtractor(c *Classifier) *Extractor {
	if c == nil {
		c = NewClassifier(nil)
	}
	return &Extractor{classifier: c}
}

// Extract returns every URL occurrence in text, in order. Candidates that
// do not parse as an absolute http(s) URL are dropped.
func (e *Extractor) Extract(text string) []Candidate {
	var out []Candidate
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		raw := trimTrailing(text[start:end])
		if raw == "" {
			continue
		}
		normalized, ok := normalize(raw)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			Raw:   raw,
			URL:   normalized,
			Start: start,
			End:   start + len(raw),
			Kind:  e.classifier.Classify(normalized),
		})
	}
	return out
}

// ExtractURLs returns the distinct normalized URLs in text, in order of
// first occurrence.
func (e *Extractor) ExtractURLs(text string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, c := range e.Extract(text) {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		urls = append(urls, c.URL)
	}
	return urls
}

// trimTrailing strips sentence punctuation the pattern swallowed. A
// closing paren is kept when it balances one inside the URL, as in
// wikipedia-style links.
func trimTrailing(s string) string {
	for s != "" {
		last := s[len(s)-1]
		if !strings.ContainsRune(trailingPunct, rune(last)) {
			break
		}
		if last == ')' && strings.Count(s, "(") >= strings.Count(s, ")") {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func normalize(raw string) (string, bool) {
	candidate := raw
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		candidate = "https://" + raw
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return "", false
	}
	return candidate, true
}
