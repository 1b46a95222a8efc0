package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RotationSignals holds the three independently-observed rotation hints
// from a container. Each is nil when the corresponding metadata is absent.
type RotationSignals struct {
	Stream        *int // stream-level tags.rotate
	Format        *int // container-level tags.rotate
	DisplayMatrix *int // display-matrix side data rotation
}

// Resolve combines the signals: display matrix wins, then the stream tag,
// then the format tag. Zero means no correction needed.
func (s RotationSignals) Resolve() int {
	if s.DisplayMatrix != nil && *s.DisplayMatrix != 0 {
		return normalizeDegrees(*s.DisplayMatrix)
	}
	if s.Stream != nil && *s.Stream != 0 {
		return normalizeDegrees(*s.Stream)
	}
	if s.Format != nil && *s.Format != 0 {
		return normalizeDegrees(*s.Format)
	}
	return 0
}

func normalizeDegrees(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

// MediaInfo is the subset of container metadata the pipeline needs.
type MediaInfo struct {
	Width        int
	Height       int
	DurationSec  float64
	VideoStreams int
	Rotation     RotationSignals
	EncoderTags  []string
	Title        string
}

// MediaProber inspects a local media file's container metadata.
type MediaProber interface {
	Inspect(ctx context.Context, path string) (*MediaInfo, error)
}

// FFProber implements MediaProber by driving ffprobe and parsing its JSON
// output.
type FFProber struct {
	Binary string
	Runner CommandRunner
}

func NewFFProber(binary string, runner CommandRunner) *FFProber {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProber{Binary: binary, Runner: runner}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string            `json:"codec_type"`
		Width        int               `json:"width"`
		Height       int               `json:"height"`
		Tags         map[string]string `json:"tags"`
		SideDataList []struct {
			SideDataType string      `json:"side_data_type"`
			Rotation     json.Number `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

func (p *FFProber) Inspect(ctx context.Context, path string) (*MediaInfo, error) {
	stdout, stderr, err := p.Runner.Run(ctx, p.Binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w (%s)", err, strings.TrimSpace(stderr))
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return parseProbeOutput(&out), nil
}

func parseProbeOutput(out *ffprobeOutput) *MediaInfo {
	info := &MediaInfo{}

	info.DurationSec, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.Title = out.Format.Tags["title"]

	if rotate, ok := parseRotateTag(out.Format.Tags); ok {
		info.Rotation.Format = &rotate
	}
	if enc := out.Format.Tags["encoder"]; enc != "" {
		info.EncoderTags = append(info.EncoderTags, enc)
	}

	for _, stream := range out.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.VideoStreams++

		if info.Width == 0 {
			info.Width = stream.Width
			info.Height = stream.Height
		}

		if info.Rotation.Stream == nil {
			if rotate, ok := parseRotateTag(stream.Tags); ok {
				info.Rotation.Stream = &rotate
			}
		}

		if info.Rotation.DisplayMatrix == nil {
			for _, sd := range stream.SideDataList {
				if !strings.EqualFold(sd.SideDataType, "Display Matrix") {
					continue
				}
				if f, err := sd.Rotation.Float64(); err == nil {
					deg := int(f)
					info.Rotation.DisplayMatrix = &deg
					break
				}
			}
		}

		for _, key := range []string{"encoder", "handler_name", "com.apple.quicktime.model"} {
			if v := stream.Tags[key]; v != "" {
				info.EncoderTags = append(info.EncoderTags, v)
			}
		}
	}

	return info
}

func parseRotateTag(tags map[string]string) (int, bool) {
	v, ok := tags["rotate"]
	if !ok || v == "" {
		return 0, false
	}
	deg, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return deg, true
}
