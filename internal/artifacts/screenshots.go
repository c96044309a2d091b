package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
)

const (
	screenshotMaxW = 1280
	screenshotMaxH = 720
	// screenshotWorkers bounds concurrent frame extractions.
	screenshotWorkers = 2
)

// screenshots extracts evenly spaced frames across the middle of the video.
// Extractions run concurrently with a bounded worker group; failed frames
// are dropped and the rest returned.
func (g *Generator) screenshots(ctx context.Context, req Request, info *ffmpeg.MediaInfo) []string {
	duration := info.DurationSeconds
	if duration <= 0 {
		g.logger.Warn("screenshots skipped", slog.String("error", "unknown duration"))
		return nil
	}

	count := req.Preview.ScreenshotCount
	if count <= 0 {
		count = defaultScreenshots
	}

	if err := g.ws.MkdirAll(tempDir); err != nil {
		g.logger.Warn("screenshots skipped", slog.String("error", err.Error()))
		return nil
	}

	times := screenshotTimes(duration, count)
	paths := make([]string, count)
	var group errgroup.Group
	group.SetLimit(screenshotWorkers)

	for i, ts := range times {
		i, ts := i, ts
		rel := filepath.Join(tempDir, fmt.Sprintf("%s_shot_%02d.jpg", req.Tag, i+1))

		group.Go(func() error {
			out, err := g.ws.ResolvePath(rel)
			if err == nil {
				err = g.extractFrame(ctx, req.VideoPath, out, ts)
			}
			if err != nil {
				g.logger.Warn("screenshot failed",
					slog.Int("index", i+1),
					slog.String("error", err.Error()),
				)
				return nil
			}
			paths[i] = out
			return nil
		})
	}
	_ = group.Wait()

	result := paths[:0]
	for _, p := range paths {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// screenshotTimes spreads count capture points over the middle of the
// source, each centered in its own slice of the usable window.
func screenshotTimes(duration float64, count int) []float64 {
	start := duration * edgeSkipFraction
	window := duration * (1 - 2*edgeSkipFraction)
	interval := window / float64(count)

	times := make([]float64, count)
	for i := range times {
		times[i] = start + (float64(i)+0.5)*interval
	}
	return times
}

// extractFrame grabs one frame scaled to fit the screenshot bounds.
func (g *Generator) extractFrame(ctx context.Context, video, out string, ts float64) error {
	runCtx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	cmd := ffmpeg.NewCommandBuilder(g.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekTo(ts).
		Input(video).
		VideoFilter(fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", screenshotMaxW, screenshotMaxH)).
		Frames(1).
		OutputArgs("-q:v", "2").
		NoAudio().
		Output(out).
		Build()

	if err := cmd.Run(runCtx); err != nil {
		return fmt.Errorf("extracting frame at %.1fs: %w", ts, err)
	}
	return nil
}
