package clip

import "strings"

// Platform identifies the hosting site a source URL belongs to.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformUnknown   Platform = "unknown"
)

// platformPatterns is matched in order, first match wins. New platforms are
// added as table rows.
var platformPatterns = []struct {
	platform Platform
	hosts    []string
}{
	{PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{PlatformFacebook, []string{"facebook.com", "fb.watch", "fb.com"}},
	{PlatformInstagram, []string{"instagram.com", "instagr.am"}},
	{PlatformTikTok, []string{"tiktok.com"}},
}

// resolutionMaps maps a resolution label to a platform-specific stream
// identifier. Absence of an entry is not an error, it falls through to the
// platform's fallback selector.
var resolutionMaps = map[Platform]map[string]string{
	PlatformYouTube: {
		"1080p": "137+140",
		"720p":  "136+140",
		"480p":  "135+140",
		"360p":  "18",
	},
	PlatformFacebook: {
		"1080p": "hd",
		"720p":  "hd",
		"480p":  "sd",
		"360p":  "sd",
	},
	PlatformTikTok: {
		"1080p": "bytevc1_1080p",
		"720p":  "bytevc1_720p",
	},
	// Instagram exposes no stable per-resolution identifiers; everything
	// falls through to the generic selector.
}

// fallbackSelectors is the generic "best available at or below the default
// ceiling" expression used when no explicit format or mapped resolution
// applies.
var fallbackSelectors = map[Platform]string{
	PlatformYouTube:   "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best",
	PlatformFacebook:  "best[height<=720]/best",
	PlatformInstagram: "best",
	PlatformTikTok:    "best",
	PlatformUnknown:   "best[height<=1080]/best",
}

// DetectPlatform classifies a URL by hostname pattern, case-insensitive.
func DetectPlatform(rawURL string) Platform {
	lower := strings.ToLower(rawURL)
	for _, entry := range platformPatterns {
		for _, host := range entry.hosts {
			if strings.Contains(lower, host) {
				return entry.platform
			}
		}
	}
	return PlatformUnknown
}

// ResolveFormat produces the effective extractor format selector for a job.
// Priority: explicit format id verbatim, then the platform's resolution
// map, then the platform fallback selector. Pure function of static
// tables, never fails.
func ResolveFormat(platform Platform, resolution, formatID string) string {
	if formatID != "" {
		return formatID
	}

	if resolution != "" {
		if m, ok := resolutionMaps[platform]; ok {
			if selector, ok := m[strings.ToLower(resolution)]; ok {
				return selector
			}
		}
	}

	if selector, ok := fallbackSelectors[platform]; ok {
		return selector
	}
	return fallbackSelectors[PlatformUnknown]
}
