package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		want Kind
	}{
		{"https://cdn.example.com/a.png", KindImage},
		{"https://cdn.example.com/a.JPEG?size=large", KindImage},
		{"http://example.com/icons/fav.ico", KindImage},
		{"https://example.com/clip.mp4", KindVideo},
		{"https://example.com/clip.webm#t=3", KindVideo},
		{"https://example.com/song.flac", KindAudio},
		{"https://i.redd.it/abc123", KindImage},
		{"https://www.imgur.com/gallery/xyz", KindImage},
		{"https://media.discordapp.net/attachments/1/2/img", KindImage},
		{"https://example.com/page", KindNone},
		{"https://notimgur.com/abc", KindNone},
		{"not a url", KindNone},
		{"ftp://cdn.example.com/a.png", KindNone},
		{"", KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.url))
		})
	}
}

func TestClassifierExtraHosts(t *testing.T) {
	c := NewClassifier([]string{" IMG.GuildedCDN.com ", ""})
	assert.Equal(t, KindImage, c.Classify("https://img.guildedcdn.com/ContentMediaGenericFiles/abc"))
	assert.Equal(t, KindImage, c.Classify("https://s3.img.guildedcdn.com/abc"))
	assert.Equal(t, KindNone, Classify("https://img.guildedcdn.com/abc"), "default classifier is unchanged")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "image", KindImage.String())
	assert.Equal(t, "video", KindVideo.String())
	assert.Equal(t, "audio", KindAudio.String())
	assert.Equal(t, "none", KindNone.String())
}

func TestExtract(t *testing.T) {
	e := NewExtractor(nil)

	text := "Look: https://cdn.example.com/cat.png, and i.redd.it/abc123. Also (see https://en.wikipedia.org/wiki/Cat_(disambiguation))."
	cands := e.Extract(text)
	require.Len(t, cands, 3)

	assert.Equal(t, "https://cdn.example.com/cat.png", cands[0].Raw)
	assert.Equal(t, KindImage, cands[0].Kind)
	assert.Equal(t, cands[0].Raw, text[cands[0].Start:cands[0].End])

	assert.Equal(t, "i.redd.it/abc123", cands[1].Raw)
	assert.Equal(t, "https://i.redd.it/abc123", cands[1].URL)
	assert.Equal(t, KindImage, cands[1].Kind)

	assert.Equal(t, "https://en.wikipedia.org/wiki/Cat_(disambiguation)", cands[2].Raw)
	assert.Equal(t, KindNone, cands[2].Kind)
}

func TestExtractMarkdownImage(t *testing.T) {
	cands := NewExtractor(nil).Extract("![a cat](https://i.imgur.com/cat.gif)")
	require.Len(t, cands, 1)
	assert.Equal(t, "https://i.imgur.com/cat.gif", cands[0].URL)
}

func TestExtractAngleBrackets(t *testing.T) {
	cands := NewExtractor(nil).Extract("<https://cdn.example.com/a.png>")
	require.Len(t, cands, 1)
	assert.Equal(t, "https://cdn.example.com/a.png", cands[0].Raw)
}

func TestExtractNothing(t *testing.T) {
	e := NewExtractor(nil)
	assert.Empty(t, e.Extract("no links here, just words."))
	assert.Empty(t, e.Extract(""))
}

func TestExtractURLsDedupes(t *testing.T) {
	urls := NewExtractor(nil).ExtractURLs("a.png is not it but https://x.io/a.png and https://x.io/a.png again, then x.io/b.png")
	assert.Equal(t, []string{"https://a.png", "https://x.io/a.png", "https://x.io/b.png"}, urls)
}

func TestTrimTrailing(t *testing.T) {
	assert.Equal(t, "https://x.io/a", trimTrailing("https://x.io/a."))
	assert.Equal(t, "https://x.io/a", trimTrailing("https://x.io/a!?"))
	assert.Equal(t, "https://x.io/a", trimTrailing("https://x.io/a)"))
	assert.Equal(t, "https://x.io/a_(b)", trimTrailing("https://x.io/a_(b)"))
	assert.Equal(t, "https://x.io/a", trimTrailing("https://x.io/a**"))
}

func newProbeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cat.png", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Contains(t, r.UserAgent(), "shaperelay/")
		w.Header().Set("Content-Type", "image/png")
	})
	mux.HandleFunc("/upper", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "IMAGE/JPEG; charset=binary")
	})
	mux.HandleFunc("/page.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/moved.png", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cat.png", http.StatusFound)
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		w.Header().Set("Content-Type", "image/png")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPValidator(t *testing.T) {
	srv := newProbeServer(t)
	v := NewHTTPValidator(srv.Client(), 200*time.Millisecond, logging.New(nil, "silent"))
	ctx := context.Background()

	assert.True(t, v.ValidateImage(ctx, srv.URL+"/cat.png"))
	assert.True(t, v.ValidateImage(ctx, srv.URL+"/upper"))
	assert.True(t, v.ValidateImage(ctx, srv.URL+"/moved.png"), "redirects are followed")
	assert.False(t, v.ValidateImage(ctx, srv.URL+"/page.png"))
	assert.False(t, v.ValidateImage(ctx, srv.URL+"/gone.png"))
	assert.False(t, v.ValidateImage(ctx, srv.URL+"/slow.png"), "probe is bounded")
	assert.False(t, v.ValidateImage(ctx, "http://127.0.0.1:1/nothing.png"))
	assert.False(t, v.ValidateImage(ctx, "::not a url"))
}

func TestHTTPValidatorDefaults(t *testing.T) {
	v := NewHTTPValidator(nil, 0, logging.New(nil, "silent"))
	assert.Equal(t, http.DefaultClient, v.client)
	assert.Equal(t, DefaultProbeTimeout, v.timeout)
}

func TestTrustValidator(t *testing.T) {
	assert.True(t, TrustValidator{}.ValidateImage(context.Background(), "https://anything"))
}
