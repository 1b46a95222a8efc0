package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tdhoang/clipsvc/internal/clip"
)

// Asset is a downloaded source file plus the diagnostic metadata the
// extractor reported. Title and duration are logging material only.
type Asset struct {
	Path        string
	Title       string
	DurationSec float64
}

// Downloader drives the external extractor through the fallback
// configuration chain.
type Downloader struct {
	runner      CommandRunner
	binary      string
	maxArtifact int64
	extraArgs   []string
	minFreeDisk uint64
	minFreeMem  uint64
	logger      *slog.Logger
}

// DownloaderConfig holds the knobs for a Downloader.
type DownloaderConfig struct {
	Binary          string
	MaxArtifactSize int64
	ExtraArgs       []string
	MinFreeDisk     uint64
	MinFreeMem      uint64
}

func NewDownloader(cfg *DownloaderConfig, runner CommandRunner, logger *slog.Logger) *Downloader {
	binary := cfg.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Downloader{
		runner:      runner,
		binary:      binary,
		maxArtifact: cfg.MaxArtifactSize,
		extraArgs:   cfg.ExtraArgs,
		minFreeDisk: cfg.MinFreeDisk,
		minFreeMem:  cfg.MinFreeMem,
		logger:      logger,
	}
}

// Fetch tries the configurations in order until one produces a local file.
// When every configuration fails, the returned error carries the LAST
// classified failure, since later configurations are more specific and
// their failure reason is the more diagnostic one.
func (d *Downloader) Fetch(ctx context.Context, sourceURL, selector string, configs []clip.ExtractionConfig, destDir string) (*Asset, error) {
	if err := d.checkResources(destDir); err != nil {
		return nil, clip.NewPipelineError(clip.ErrCodeDownloadUnknown, err)
	}

	var lastCode clip.ErrorCode
	var lastErr error

	for _, cfg := range configs {
		asset, err := d.attempt(ctx, sourceURL, selector, cfg, destDir)
		if err == nil {
			d.logger.Info("Download succeeded",
				slog.String("config", cfg.Name),
				slog.String("title", asset.Title),
				slog.Float64("duration_sec", asset.DurationSec),
			)
			return asset, nil
		}

		// A dead parent context means the job is being torn down, not that
		// this configuration is at fault. Only the job deadline is a timeout;
		// plain cancellation is worker shutdown and stays unclassified so it
		// is never persisted as a job outcome.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.Canceled) {
				return nil, fmt.Errorf("download interrupted: %w", ctxErr)
			}
			return nil, clip.NewPipelineError(clip.ErrCodeDownloadTimeout, ctxErr)
		}

		lastCode, lastErr = classifyFailure(err)
		d.logger.Warn("Download attempt failed",
			slog.String("config", cfg.Name),
			slog.String("classified", string(lastCode)),
			slog.String("error", lastErr.Error()),
		)
	}

	if lastErr == nil {
		lastCode = clip.ErrCodeDownloadUnknown
		lastErr = errors.New("no extraction configurations available")
	}
	return nil, clip.NewPipelineError(lastCode, lastErr)
}

func (d *Downloader) attempt(ctx context.Context, sourceURL, selector string, cfg clip.ExtractionConfig, destDir string) (*Asset, error) {
	attemptCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"-f", selector,
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--print-json",
		"--remux-video", "mp4",
		"-o", filepath.Join(destDir, "source.%(ext)s"),
	}

	if d.maxArtifact > 0 {
		args = append(args, "--max-filesize", fmt.Sprintf("%d", d.maxArtifact))
	}
	if cfg.Retries > 0 {
		args = append(args, "--retries", fmt.Sprintf("%d", cfg.Retries))
	}
	if cfg.UserAgent != "" {
		args = append(args, "--user-agent", cfg.UserAgent)
	}
	for key, value := range cfg.Headers {
		args = append(args, "--add-header", key+":"+value)
	}
	if cfg.CookiePath != "" {
		args = append(args, "--cookies", cfg.CookiePath)
	}
	args = append(args, d.extraArgs...)
	args = append(args, sourceURL)

	stdout, stderr, err := d.runner.Run(attemptCtx, d.binary, args...)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("extractor timed out after %s: %w", cfg.Timeout, attemptCtx.Err())
		}
		return nil, fmt.Errorf("extractor failed: %w: %s", err, tail(stderr, 400))
	}

	asset := &Asset{}
	if info := parseExtractorJSON(stdout); info != nil {
		asset.Title = info.Title
		asset.DurationSec = info.Duration
	}

	matches, _ := filepath.Glob(filepath.Join(destDir, "source.*"))
	if len(matches) == 0 {
		return nil, fmt.Errorf("extractor reported success but produced no file: %s", tail(stderr, 200))
	}
	asset.Path = matches[0]

	return asset, nil
}

type extractorInfo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// parseExtractorJSON pulls the info JSON the extractor prints on stdout.
// Absence is tolerated; the metadata is diagnostics only.
func parseExtractorJSON(stdout string) *extractorInfo {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info extractorInfo
		if err := json.Unmarshal([]byte(line), &info); err == nil {
			return &info
		}
	}
	return nil
}

// classifyFailure buckets extractor failure text into the download error
// taxonomy. Matching is substring-based over the lowered message.
func classifyFailure(err error) (clip.ErrorCode, error) {
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "timeout"):
		return clip.ErrCodeDownloadTimeout, err

	case strings.Contains(msg, "sign in") ||
		strings.Contains(msg, "login required") ||
		strings.Contains(msg, "log in") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "cookies"):
		return clip.ErrCodeDownloadAuthRequired, err

	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate-limit"):
		return clip.ErrCodeDownloadRateLimited, err

	case strings.Contains(msg, "private") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "not available") ||
		strings.Contains(msg, "removed") ||
		strings.Contains(msg, "does not exist"):
		return clip.ErrCodeDownloadUnavailable, err

	default:
		return clip.ErrCodeDownloadUnknown, err
	}
}

// checkResources refuses to start a download when the host is short on
// disk or memory, so a doomed job fails fast instead of mid-transfer.
func (d *Downloader) checkResources(destDir string) error {
	if d.minFreeDisk > 0 {
		usage, err := disk.Usage(destDir)
		if err != nil {
			d.logger.Warn("Could not check disk usage", slog.String("error", err.Error()))
		} else if usage.Free < d.minFreeDisk {
			return fmt.Errorf("not enough free disk space: %d available, %d required", usage.Free, d.minFreeDisk)
		}
	}

	if d.minFreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			d.logger.Warn("Could not check memory usage", slog.String("error", err.Error()))
		} else if vm.Available < d.minFreeMem {
			return fmt.Errorf("not enough free memory: %d available, %d required", vm.Available, d.minFreeMem)
		}
	}

	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
