package clip

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExtractionConfig is one variant of extractor invocation parameters. The
// builder returns them ordered most-specific-first; the download stage
// tries them until one succeeds.
type ExtractionConfig struct {
	Name       string
	UserAgent  string
	Headers    map[string]string
	CookiePath string
	Timeout    time.Duration
	Retries    int
}

// BuildOptions carries per-deployment knobs into config building.
type BuildOptions struct {
	// CookieOverride, when set, wins over every other credential source.
	CookieOverride string
	// AttemptTimeout bounds a single extractor invocation.
	AttemptTimeout time.Duration
	// TempDir receives cookie files materialized from env payloads.
	TempDir string
}

const (
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"

	defaultAttemptTimeout = 5 * time.Minute
)

// platformHeaders are the tuned header sets tried before the generic
// configuration. Table rows, not subclasses.
var platformHeaders = map[Platform]map[string]string{
	PlatformYouTube: {
		"Accept-Language": "en-US,en;q=0.9",
	},
	PlatformFacebook: {
		"Accept-Language": "en-US,en;q=0.9",
		"Sec-Fetch-Mode":  "navigate",
	},
	PlatformInstagram: {
		"Accept-Language": "en-US,en;q=0.9",
		"X-IG-App-ID":     "936619743392459",
	},
	PlatformTikTok: {
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://www.tiktok.com/",
	},
}

// mobileFirst lists platforms whose tuned configuration uses a mobile
// user-agent, matching what their web players serve most reliably.
var mobileFirst = map[Platform]bool{
	PlatformInstagram: true,
	PlatformTikTok:    true,
}

// cookieSearchPaths returns the conventional on-disk locations checked for
// credential material, platform-specific files before shared ones.
func cookieSearchPaths(platform Platform) []string {
	home, _ := os.UserHomeDir()
	name := string(platform)
	return []string{
		filepath.Join(home, ".config", "clipsvc", "cookies_"+name+".txt"),
		filepath.Join(home, ".config", "clipsvc", "cookies.txt"),
		"cookies_" + name + ".txt",
		"cookies.txt",
		filepath.Join("/etc/clipsvc", "cookies_"+name+".txt"),
		filepath.Join("/etc/clipsvc", "cookies.txt"),
	}
}

// BuildConfigs produces the ordered fallback chain for a platform. The
// list always ends with a bare default, so at least one configuration
// exists even with no credentials anywhere.
func BuildConfigs(platform Platform, opts BuildOptions) []ExtractionConfig {
	timeout := opts.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}

	cookiePath := resolveCookies(platform, opts)

	tunedUA := desktopUserAgent
	if mobileFirst[platform] {
		tunedUA = mobileUserAgent
	}

	configs := make([]ExtractionConfig, 0, 3)

	if headers, ok := platformHeaders[platform]; ok {
		configs = append(configs, ExtractionConfig{
			Name:       string(platform) + "-tuned",
			UserAgent:  tunedUA,
			Headers:    headers,
			CookiePath: cookiePath,
			Timeout:    timeout,
			Retries:    2,
		})
	}

	if cookiePath != "" {
		configs = append(configs, ExtractionConfig{
			Name:       "generic-authenticated",
			UserAgent:  desktopUserAgent,
			CookiePath: cookiePath,
			Timeout:    timeout,
			Retries:    1,
		})
	}

	configs = append(configs, ExtractionConfig{
		Name:      "bare-default",
		UserAgent: desktopUserAgent,
		Timeout:   timeout,
		Retries:   1,
	})

	return configs
}

// resolveCookies walks the credential sources in priority order: explicit
// override, base64 env payload, plaintext env payload, then the on-disk
// search list. Empty return means no credentials, which is not an error.
func resolveCookies(platform Platform, opts BuildOptions) string {
	if opts.CookieOverride != "" {
		return opts.CookieOverride
	}

	envSuffix := strings.ToUpper(string(platform))

	if payload := os.Getenv("CLIPSVC_COOKIES_B64_" + envSuffix); payload != "" {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err == nil {
			if path, err := writeCookieFile(opts.TempDir, platform, decoded); err == nil {
				return path
			}
		}
	}

	if payload := os.Getenv("CLIPSVC_COOKIES_" + envSuffix); payload != "" {
		if path, err := writeCookieFile(opts.TempDir, platform, []byte(payload)); err == nil {
			return path
		}
	}

	for _, candidate := range cookieSearchPaths(platform) {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}

	return ""
}

func writeCookieFile(dir string, platform Platform, data []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, fmt.Sprintf("cookies_%s_*.txt", platform))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
