package clip

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConfigs_Ordering(t *testing.T) {
	tests := []struct {
		name      string
		platform  Platform
		opts      BuildOptions
		wantNames []string
	}{
		{
			name:      "platform with cookie override",
			platform:  PlatformYouTube,
			opts:      BuildOptions{CookieOverride: "/tmp/cookies.txt"},
			wantNames: []string{"youtube-tuned", "generic-authenticated", "bare-default"},
		},
		{
			name:      "platform without credentials",
			platform:  PlatformTikTok,
			opts:      BuildOptions{},
			wantNames: []string{"tiktok-tuned", "bare-default"},
		},
		{
			name:      "unknown platform without credentials",
			platform:  PlatformUnknown,
			opts:      BuildOptions{},
			wantNames: []string{"bare-default"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configs := BuildConfigs(tt.platform, tt.opts)

			require.NotEmpty(t, configs)
			names := make([]string, len(configs))
			for i, cfg := range configs {
				names[i] = cfg.Name
			}
			assert.Equal(t, tt.wantNames, names)

			// The chain always ends with the credential-free default.
			last := configs[len(configs)-1]
			assert.Equal(t, "bare-default", last.Name)
			assert.Empty(t, last.CookiePath)
		})
	}
}

func TestBuildConfigs_MobileFirstPlatforms(t *testing.T) {
	instagram := BuildConfigs(PlatformInstagram, BuildOptions{})
	require.NotEmpty(t, instagram)
	assert.Equal(t, mobileUserAgent, instagram[0].UserAgent)

	youtube := BuildConfigs(PlatformYouTube, BuildOptions{})
	require.NotEmpty(t, youtube)
	assert.Equal(t, desktopUserAgent, youtube[0].UserAgent)
}

func TestBuildConfigs_Timeout(t *testing.T) {
	configs := BuildConfigs(PlatformYouTube, BuildOptions{AttemptTimeout: 90 * time.Second})
	for _, cfg := range configs {
		assert.Equal(t, 90*time.Second, cfg.Timeout)
	}

	defaulted := BuildConfigs(PlatformYouTube, BuildOptions{})
	for _, cfg := range defaulted {
		assert.Equal(t, defaultAttemptTimeout, cfg.Timeout)
	}
}

func TestResolveCookies_Priority(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("override wins over env", func(t *testing.T) {
		t.Setenv("CLIPSVC_COOKIES_B64_YOUTUBE", base64.StdEncoding.EncodeToString([]byte("env data")))

		path := resolveCookies(PlatformYouTube, BuildOptions{
			CookieOverride: "/explicit/cookies.txt",
			TempDir:        tempDir,
		})
		assert.Equal(t, "/explicit/cookies.txt", path)
	})

	t.Run("base64 env payload materialized", func(t *testing.T) {
		payload := "# Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t0\tSID\tvalue\n"
		t.Setenv("CLIPSVC_COOKIES_B64_YOUTUBE", base64.StdEncoding.EncodeToString([]byte(payload)))

		path := resolveCookies(PlatformYouTube, BuildOptions{TempDir: tempDir})
		require.NotEmpty(t, path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, payload, string(data))
	})

	t.Run("base64 wins over plaintext", func(t *testing.T) {
		t.Setenv("CLIPSVC_COOKIES_B64_TIKTOK", base64.StdEncoding.EncodeToString([]byte("from b64")))
		t.Setenv("CLIPSVC_COOKIES_TIKTOK", "from plaintext")

		path := resolveCookies(PlatformTikTok, BuildOptions{TempDir: tempDir})
		require.NotEmpty(t, path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "from b64", string(data))
	})

	t.Run("plaintext env payload materialized", func(t *testing.T) {
		t.Setenv("CLIPSVC_COOKIES_INSTAGRAM", "plain cookie data")

		path := resolveCookies(PlatformInstagram, BuildOptions{TempDir: tempDir})
		require.NotEmpty(t, path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "plain cookie data", string(data))
	})

	t.Run("invalid base64 falls through to plaintext", func(t *testing.T) {
		t.Setenv("CLIPSVC_COOKIES_B64_FACEBOOK", "!!! not base64 !!!")
		t.Setenv("CLIPSVC_COOKIES_FACEBOOK", "fallback data")

		path := resolveCookies(PlatformFacebook, BuildOptions{TempDir: tempDir})
		require.NotEmpty(t, path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "fallback data", string(data))
	})

	t.Run("no credentials anywhere is empty, not an error", func(t *testing.T) {
		path := resolveCookies(PlatformUnknown, BuildOptions{TempDir: tempDir})
		assert.Empty(t, path)
	})
}

func TestWriteCookieFile(t *testing.T) {
	dir := t.TempDir()

	path, err := writeCookieFile(dir, PlatformYouTube, []byte("cookie contents"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cookie contents", string(data))
}
