package clip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Platform
	}{
		{"youtube watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", PlatformYouTube},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", PlatformYouTube},
		{"youtube uppercase host", "https://WWW.YOUTUBE.COM/watch?v=abc", PlatformYouTube},
		{"facebook video", "https://www.facebook.com/watch/?v=123", PlatformFacebook},
		{"fb.watch short link", "https://fb.watch/abc123/", PlatformFacebook},
		{"instagram reel", "https://www.instagram.com/reel/Cabc123/", PlatformInstagram},
		{"instagram short domain", "https://instagr.am/p/Cabc123/", PlatformInstagram},
		{"tiktok video", "https://www.tiktok.com/@user/video/7123", PlatformTikTok},
		{"unrelated host", "https://vimeo.com/12345", PlatformUnknown},
		{"empty string", "", PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPlatform(tt.url))
		})
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name       string
		platform   Platform
		resolution string
		formatID   string
		want       string
	}{
		{"explicit format id wins", PlatformYouTube, "720p", "299+140", "299+140"},
		{"youtube 1080p mapped", PlatformYouTube, "1080p", "", "137+140"},
		{"youtube 720p mapped", PlatformYouTube, "720p", "", "136+140"},
		{"youtube 360p mapped", PlatformYouTube, "360p", "", "18"},
		{"resolution label case-insensitive", PlatformYouTube, "1080P", "", "137+140"},
		{"unmapped resolution falls back", PlatformYouTube, "4320p", "", "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"},
		{"no resolution falls back", PlatformYouTube, "", "", "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"},
		{"facebook hd", PlatformFacebook, "1080p", "", "hd"},
		{"facebook sd", PlatformFacebook, "480p", "", "sd"},
		{"tiktok mapped", PlatformTikTok, "720p", "", "bytevc1_720p"},
		{"instagram has no map", PlatformInstagram, "720p", "", "best"},
		{"unknown platform fallback", PlatformUnknown, "720p", "", "best[height<=1080]/best"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFormat(tt.platform, tt.resolution, tt.formatID))
		})
	}
}

func TestResolveFormat_Deterministic(t *testing.T) {
	first := ResolveFormat(PlatformYouTube, "720p", "")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ResolveFormat(PlatformYouTube, "720p", ""))
	}
}
