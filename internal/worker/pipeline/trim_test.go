package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdhoang/clipsvc/internal/clip"
)

type stubProber struct {
	info *MediaInfo
	err  error
}

func (p *stubProber) Inspect(_ context.Context, _ string) (*MediaInfo, error) {
	return p.info, p.err
}

func goodOutput(durationSec float64) *MediaInfo {
	return &MediaInfo{Width: 1920, Height: 1080, DurationSec: durationSec, VideoStreams: 1}
}

func TestCut_StreamCopyWhenIdentity(t *testing.T) {
	runner := &stubRunner{fn: func(_ context.Context, _ string, _ ...string) (string, string, error) {
		return "", "", nil
	}}
	trimmer := NewTrimmer(&TrimmerConfig{}, runner, &stubProber{info: goodOutput(25)}, testLogger())

	err := trimmer.Cut(context.Background(), "/tmp/in.mp4", 5, 30, TransformNone, "/tmp/out.mp4")
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, "ffmpeg", call[0])
	assert.Contains(t, call, "-ss")
	assert.Contains(t, call, "5.000")
	assert.Contains(t, call, "-to")
	assert.Contains(t, call, "30.000")
	assert.Contains(t, call, "-avoid_negative_ts")
	assert.Contains(t, call, "make_zero")
	assert.Contains(t, call, "-c")
	assert.Contains(t, call, "copy")
	assert.NotContains(t, call, "-vf")
	assert.NotContains(t, call, "libx264")
	assert.Equal(t, "/tmp/out.mp4", call[len(call)-1])
}

func TestCut_ReencodesWithTransform(t *testing.T) {
	runner := &stubRunner{fn: func(_ context.Context, _ string, _ ...string) (string, string, error) {
		return "", "", nil
	}}
	trimmer := NewTrimmer(&TrimmerConfig{}, runner, &stubProber{info: goodOutput(25)}, testLogger())

	err := trimmer.Cut(context.Background(), "/tmp/in.mp4", 0, 25, TransformClockwise, "/tmp/out.mp4")
	require.NoError(t, err)

	call := runner.calls[0]
	assert.Contains(t, call, "-vf")
	assert.Contains(t, call, "transpose=1")
	assert.Contains(t, call, "-c:v")
	assert.Contains(t, call, "libx264")
	assert.Contains(t, call, "-c:a")
	assert.Contains(t, call, "copy")
	assert.Contains(t, call, "-metadata:s:v:0")
	assert.Contains(t, call, "rotate=0")
}

func TestCut_TranscoderFailure(t *testing.T) {
	runner := &stubRunner{fn: func(_ context.Context, _ string, _ ...string) (string, string, error) {
		return "", "Invalid data found when processing input", fmt.Errorf("exit status 1")
	}}
	trimmer := NewTrimmer(&TrimmerConfig{}, runner, &stubProber{info: goodOutput(25)}, testLogger())

	err := trimmer.Cut(context.Background(), "/tmp/in.mp4", 0, 25, TransformNone, "/tmp/out.mp4")
	require.Error(t, err)
	assert.Equal(t, clip.ErrCodeTrimFailed, clip.CodeOf(err))
	assert.Contains(t, err.Error(), "Invalid data")
}

func TestCut_NoVideoStreamsInOutput(t *testing.T) {
	runner := &stubRunner{fn: func(_ context.Context, _ string, _ ...string) (string, string, error) {
		return "", "", nil
	}}
	prober := &stubProber{info: &MediaInfo{DurationSec: 25, VideoStreams: 0}}
	trimmer := NewTrimmer(&TrimmerConfig{}, runner, prober, testLogger())

	err := trimmer.Cut(context.Background(), "/tmp/in.mp4", 0, 25, TransformNone, "/tmp/out.mp4")
	require.Error(t, err)
	assert.Equal(t, clip.ErrCodeTrimFailed, clip.CodeOf(err))
	assert.Contains(t, err.Error(), "no video streams")
}

func TestCut_ProbeFailureOnOutput(t *testing.T) {
	runner := &stubRunner{fn: func(_ context.Context, _ string, _ ...string) (string, string, error) {
		return "", "", nil
	}}
	prober := &stubProber{err: fmt.Errorf("moov atom not found")}
	trimmer := NewTrimmer(&TrimmerConfig{}, runner, prober, testLogger())

	err := trimmer.Cut(context.Background(), "/tmp/in.mp4", 0, 25, TransformNone, "/tmp/out.mp4")
	require.Error(t, err)
	assert.Equal(t, clip.ErrCodeTrimFailed, clip.CodeOf(err))
}

func TestCut_DriftBeyondToleranceIsNotFailure(t *testing.T) {
	runner := &stubRunner{fn: func(_ context.Context, _ string, _ ...string) (string, string, error) {
		return "", "", nil
	}}
	// Requested 25s, got 21s: four seconds of drift, far past tolerance.
	prober := &stubProber{info: goodOutput(21)}
	trimmer := NewTrimmer(&TrimmerConfig{DriftTolerance: 1500 * time.Millisecond}, runner, prober, testLogger())

	err := trimmer.Cut(context.Background(), "/tmp/in.mp4", 0, 25, TransformNone, "/tmp/out.mp4")
	assert.NoError(t, err)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "5.000", formatSeconds(5))
	assert.Equal(t, "1.250", formatSeconds(1.25))
	assert.Equal(t, "0.001", formatSeconds(0.001))
}
