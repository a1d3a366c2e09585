package media

import (
	"net/url"
	"path"
	"strings"
)

// Kind is what a URL is believed to point at.
type Kind int

const (
	KindNone Kind = iota
	KindImage
	KindVideo
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "none"
	}
}

var extensionKinds = map[string]Kind{
	"png": KindImage, "jpg": KindImage, "jpeg": KindImage, "gif": KindImage,
	"webp": KindImage, "bmp": KindImage, "svg": KindImage, "tiff": KindImage, "ico": KindImage,

	"mp4": KindVideo, "webm": KindVideo, "mov": KindVideo,
	"avi": KindVideo, "mkv": KindVideo, "flv": KindVideo,

	"mp3": KindAudio, "ogg": KindAudio, "wav": KindAudio,
	"m4a": KindAudio, "aac": KindAudio, "flac": KindAudio,
}

// DefaultImageHosts serve images at extensionless URLs.
var DefaultImageHosts = []string{
	"imgur.com",
	"i.imgur.com",
	"cdn.discordapp.com",
	"media.discordapp.net",
	"i.redd.it",
	"preview.redd.it",
}

// Classifier maps URLs to a Kind.
type Classifier struct {
	imageHosts map[string]bool
}

// NewClassifier returns a Classifier that trusts DefaultImageHosts plus
// extraHosts.
func NewClassifier(extraHosts []string) *Classifier {
	hosts := make(map[string]bool, len(DefaultImageHosts)+len(extraHosts))
	for _, h := range DefaultImageHosts {
		hosts[h] = true
	}
	for _, h := range extraHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = true
		}
	}
	return &Classifier{imageHosts: hosts}
}

// Classify looks at the path extension first and falls back to the image
// host allowlist. Anything that is not an http(s) URL is KindNone.
func (c *Classifier) Classify(raw string) Kind {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return KindNone
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return KindNone
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	if c.isImageHost(u.Hostname()) {
		return KindImage
	}
	return KindNone
}

func (c *Classifier) isImageHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for {
		if c.imageHosts[host] {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
}

var defaultClassifier = NewClassifier(nil)

// Classify uses the built-in tables only.
func Classify(raw string) Kind {
	return defaultClassifier.Classify(raw)
}
