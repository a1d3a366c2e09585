package format

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/soyeahso/shaperelay/internal/media"
	"github.com/stretchr/testify/assert"
)

// fakeValidator accepts the URLs in valid and records every probe.
type fakeValidator struct {
	mu     sync.Mutex
	valid  map[string]bool
	probed []string
}

func (f *fakeValidator) ValidateImage(_ context.Context, url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, url)
	return f.valid[url]
}

func newFormatter(valid ...string) (*Formatter, *fakeValidator) {
	v := &fakeValidator{valid: make(map[string]bool)}
	for _, u := range valid {
		v.valid[u] = true
	}
	return New(media.NewExtractor(nil), v), v
}

func TestFormat_TextWithEmbeds(t *testing.T) {
	f, _ := newFormatter("https://cdn.example.com/cat.png")

	got := f.Format(context.Background(), "Here you go\nhttps://cdn.example.com/cat.png")
	assert.Equal(t, Reply{
		Kind:   TextWithEmbeds,
		Text:   "Here you go",
		Embeds: []string{"https://cdn.example.com/cat.png"},
	}, got)
}

func TestFormat_EmbedsOnly(t *testing.T) {
	f, _ := newFormatter("https://cdn.example.com/cat.png")

	got := f.Format(context.Background(), "https://cdn.example.com/cat.png")
	assert.Equal(t, Reply{Kind: EmbedsOnly, Embeds: []string{"https://cdn.example.com/cat.png"}}, got)
}

func TestFormat_VideoLeftInline(t *testing.T) {
	f, v := newFormatter()

	raw := "watch this\nhttps://example.com/clip.mp4"
	got := f.Format(context.Background(), raw)
	assert.Equal(t, Reply{Kind: TextOnly, Text: raw}, got)
	assert.Empty(t, v.probed, "only images are probed")
}

func TestFormat_OnlyValidImagesEmbedded(t *testing.T) {
	f, v := newFormatter("https://a.example.com/one.png", "https://b.example.com/two.jpg")

	raw := "First https://a.example.com/one.png\nBroken https://c.example.com/three.gif\nSecond <https://b.example.com/two.jpg>"
	got := f.Format(context.Background(), raw)

	assert.Equal(t, TextWithEmbeds, got.Kind)
	assert.Equal(t, []string{"https://a.example.com/one.png", "https://b.example.com/two.jpg"}, got.Embeds)
	assert.Equal(t, "First\nBroken https://c.example.com/three.gif\nSecond", got.Text)
	assert.Len(t, v.probed, 3)
}

func TestFormat_NoValidImages(t *testing.T) {
	f, _ := newFormatter()

	raw := "maybe https://cdn.example.com/cat.png ?"
	assert.Equal(t, Reply{Kind: TextOnly, Text: raw}, f.Format(context.Background(), raw))
}

func TestFormat_PlainText(t *testing.T) {
	f, v := newFormatter()

	raw := "  just words, nothing linked  "
	assert.Equal(t, Reply{Kind: TextOnly, Text: raw}, f.Format(context.Background(), raw))
	assert.Empty(t, v.probed)
}

func TestFormat_Blank(t *testing.T) {
	f, _ := newFormatter()

	assert.Equal(t, Reply{Kind: TextOnly, Text: ""}, f.Format(context.Background(), ""))
	assert.Equal(t, Reply{Kind: TextOnly, Text: " \n\t"}, f.Format(context.Background(), " \n\t"))
}

func TestFormat_DuplicateImageProbedOnce(t *testing.T) {
	f, v := newFormatter("https://i.imgur.com/abc")

	got := f.Format(context.Background(), "i.imgur.com/abc\nagain: https://i.imgur.com/abc")
	assert.Equal(t, Reply{Kind: TextWithEmbeds, Text: "again:", Embeds: []string{"https://i.imgur.com/abc"}}, got)
	assert.Equal(t, []string{"https://i.imgur.com/abc"}, v.probed)
}

func TestFormat_CollapsesBlankLines(t *testing.T) {
	f, _ := newFormatter("https://a.example.com/1.png", "https://a.example.com/2.png")

	raw := "Check these:\n\nhttps://a.example.com/1.png\n\nhttps://a.example.com/2.png\n\nEnjoy!"
	got := f.Format(context.Background(), raw)
	assert.Equal(t, "Check these:\n\nEnjoy!", got.Text)
	assert.Len(t, got.Embeds, 2)
}

func TestFormat_MarkdownImage(t *testing.T) {
	f, _ := newFormatter("https://i.imgur.com/cat.gif")

	got := f.Format(context.Background(), "Meow ![a cat](https://i.imgur.com/cat.gif)")
	assert.Equal(t, Reply{Kind: TextWithEmbeds, Text: "Meow", Embeds: []string{"https://i.imgur.com/cat.gif"}}, got)
}

func TestFormat_RejectedMarkdownImageStays(t *testing.T) {
	f, _ := newFormatter("https://cdn.example.com/b.png")

	raw := "![broken](https://cdn.example.com/bad.png) look [here](https://cdn.example.com/b.png)"
	got := f.Format(context.Background(), raw)
	assert.Equal(t, Reply{
		Kind:   TextWithEmbeds,
		Text:   "![broken](https://cdn.example.com/bad.png) look [here]",
		Embeds: []string{"https://cdn.example.com/b.png"},
	}, got)
}

func TestFormat_ImageThenLinkKeepsText(t *testing.T) {
	f, _ := newFormatter("https://cdn.example.com/a.png", "https://cdn.example.com/b.png")

	raw := "![x](https://cdn.example.com/a.png) see the second one [here](https://cdn.example.com/b.png) tail"
	got := f.Format(context.Background(), raw)
	assert.Equal(t, Reply{
		Kind:   TextWithEmbeds,
		Text:   "see the second one [here] tail",
		Embeds: []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"},
	}, got)
}

func TestLabelStart(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want int
	}{
		{"simple", "![cat](u)", 1},
		{"nested", "![a [b] c](u)", 1},
		{"stops at other link", "[a](x) b](u)", -1},
		{"stops at newline", "[a\nb](u)", -1},
		{"unmatched", "b](u)", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, labelStart(tt.s, strings.LastIndex(tt.s, "](")))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "text", TextOnly.String())
	assert.Equal(t, "embeds", EmbedsOnly.String())
	assert.Equal(t, "text+embeds", TextWithEmbeds.String())
}
