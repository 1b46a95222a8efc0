package pipeline

import "strings"

// Transform is the corrective video filter applied during trimming.
type Transform string

const (
	// TransformNone means stream copy is safe.
	TransformNone Transform = ""
	// TransformClockwise corrects a 90 degree rotation tag.
	TransformClockwise Transform = "transpose=1"
	// TransformCounterClockwise corrects a 270 (or -90) degree rotation tag.
	TransformCounterClockwise Transform = "transpose=2"
	// TransformRotate180 corrects an upside-down recording.
	TransformRotate180 Transform = "hflip,vflip"
)

// RotationAnalysis is the outcome of inspecting a downloaded asset.
type RotationAnalysis struct {
	Degrees      int
	Transform    Transform
	LikelyMobile bool
}

// mobileEncoderMarkers are substrings of encoder/handler metadata that
// identify phone-recorded footage.
var mobileEncoderMarkers = []string{
	"iphone",
	"android",
	"quicktime",
	"core media",
	"samsung",
}

// AnalyzeRotation resolves the three rotation signals into a single
// corrective transform and flags likely mobile recordings. The mobile flag
// is advisory and never overrides an explicit rotation signal.
func AnalyzeRotation(info *MediaInfo) RotationAnalysis {
	degrees := info.Rotation.Resolve()

	analysis := RotationAnalysis{
		Degrees:   degrees,
		Transform: transformFor(degrees),
	}

	if info.Height > info.Width && info.Width > 0 {
		for _, tag := range info.EncoderTags {
			lower := strings.ToLower(tag)
			for _, marker := range mobileEncoderMarkers {
				if strings.Contains(lower, marker) {
					analysis.LikelyMobile = true
					break
				}
			}
			if analysis.LikelyMobile {
				break
			}
		}
	}

	return analysis
}

// transformFor maps a normalized degree value to a discrete corrective
// transform. Unexpected values fall back to identity rather than guessing.
func transformFor(degrees int) Transform {
	switch degrees {
	case 90:
		return TransformClockwise
	case 270:
		return TransformCounterClockwise
	case 180:
		return TransformRotate180
	default:
		return TransformNone
	}
}
