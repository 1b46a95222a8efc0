package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/tdhoang/clipsvc/internal/clip"
)

// Trimmer drives the external transcoder to cut the requested range and
// apply the corrective transform.
type Trimmer struct {
	runner         CommandRunner
	prober         MediaProber
	binary         string
	driftTolerance time.Duration
	logger         *slog.Logger
}

// TrimmerConfig holds the knobs for a Trimmer.
type TrimmerConfig struct {
	Binary         string
	DriftTolerance time.Duration
}

func NewTrimmer(cfg *TrimmerConfig, runner CommandRunner, prober MediaProber, logger *slog.Logger) *Trimmer {
	binary := cfg.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	tolerance := cfg.DriftTolerance
	if tolerance <= 0 {
		tolerance = 1500 * time.Millisecond
	}
	return &Trimmer{
		runner:         runner,
		prober:         prober,
		binary:         binary,
		driftTolerance: tolerance,
		logger:         logger,
	}
}

// Cut produces outPath containing [startSec, endSec) of inPath. Stream
// copy is used when no transform is required; otherwise video is
// re-encoded and audio copied. Timestamps are normalized so the output
// starts at zero even when the cut point lands mid-GOP.
func (t *Trimmer) Cut(ctx context.Context, inPath string, startSec, endSec float64, transform Transform, outPath string) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(startSec),
		"-to", formatSeconds(endSec),
		"-i", inPath,
		"-avoid_negative_ts", "make_zero",
	}

	if transform == TransformNone {
		args = append(args, "-c", "copy")
	} else {
		args = append(args,
			"-vf", string(transform),
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-c:a", "copy",
			"-metadata:s:v:0", "rotate=0",
		)
	}
	args = append(args, outPath)

	_, stderr, err := t.runner.Run(ctx, t.binary, args...)
	if err != nil {
		return clip.NewPipelineError(clip.ErrCodeTrimFailed,
			fmt.Errorf("transcoder failed: %w: %s", err, tail(stderr, 400)))
	}

	info, err := t.prober.Inspect(ctx, outPath)
	if err != nil {
		return clip.NewPipelineError(clip.ErrCodeTrimFailed,
			fmt.Errorf("could not inspect trimmed output: %w", err))
	}
	if info.VideoStreams == 0 {
		return clip.NewPipelineError(clip.ErrCodeTrimFailed,
			fmt.Errorf("trimmed output has no video streams"))
	}

	requested := endSec - startSec
	drift := math.Abs(info.DurationSec - requested)
	if time.Duration(drift*float64(time.Second)) > t.driftTolerance {
		// Container-level seeking is not frame accurate; larger drift is
		// a quality warning, not a failure.
		t.logger.Warn("Trim duration drifted beyond tolerance",
			slog.Float64("requested_sec", requested),
			slog.Float64("actual_sec", info.DurationSec),
			slog.Float64("drift_sec", drift),
		)
	} else if drift > 0 {
		t.logger.Debug("Trim duration drift within tolerance",
			slog.Float64("drift_sec", drift),
		)
	}

	return nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
