package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
)

const (
	previewHeight   = 720
	previewClipsMin = 3
	previewClipsMax = 8
	// previewSliceSeconds is how much source each clip represents when
	// sizing the reel.
	previewSliceSeconds = 120
	// edgeSkipFraction of the source is skipped at each end so the reel
	// avoids intros and credits.
	edgeSkipFraction = 0.05
)

// previewReel renders several short clips spread across the video and
// concatenates them into one reel. Clips and the concat manifest live in a
// scratch dir that is removed on every exit.
func (g *Generator) previewReel(ctx context.Context, req Request, info *ffmpeg.MediaInfo) (string, error) {
	total := float64(req.Preview.PreviewDuration)
	if total <= 0 {
		total = defaultPreviewSeconds
	}
	quality := req.Preview.PreviewQuality
	if quality <= 0 {
		quality = defaultPreviewCRF
	}

	plan, err := planReel(info.DurationSeconds, total)
	if err != nil {
		return "", err
	}

	scratchRel := filepath.Join(tempDir, req.Tag+"_clips")
	if err := g.ws.MkdirAll(scratchRel); err != nil {
		return "", err
	}
	scratch, err := g.ws.ResolvePath(scratchRel)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(scratch)

	var manifest strings.Builder
	for i := 0; i < plan.clips; i++ {
		offset := plan.start + float64(i)*plan.segment
		clipName := fmt.Sprintf("clip_%02d.mp4", i)

		if err := g.renderClip(ctx, req.VideoPath, filepath.Join(scratch, clipName), offset, plan.clipLen, quality); err != nil {
			return "", fmt.Errorf("rendering clip %d: %w", i, err)
		}
		fmt.Fprintf(&manifest, "file '%s'\n", clipName)
	}

	listPath := filepath.Join(scratch, "clips.txt")
	if err := os.WriteFile(listPath, []byte(manifest.String()), 0640); err != nil {
		return "", fmt.Errorf("writing concat manifest: %w", err)
	}

	outRel := filepath.Join(tempDir, req.Tag+"_preview.mp4")
	out, err := g.ws.ResolvePath(outRel)
	if err != nil {
		return "", err
	}
	if err := g.concatClips(ctx, listPath, out); err != nil {
		return "", err
	}
	return out, nil
}

// reelPlan positions the preview clips across the source.
type reelPlan struct {
	clips   int
	clipLen float64
	// start is the first clip offset; segment is the spacing between
	// clip starts.
	start   float64
	segment float64
}

// planReel sizes the reel for a source: one clip per two minutes, clamped,
// with the total reel time split evenly and the edges of the source skipped.
func planReel(duration, total float64) (reelPlan, error) {
	if duration <= 0 {
		return reelPlan{}, fmt.Errorf("unknown duration")
	}

	clips := int(duration / previewSliceSeconds)
	if clips < previewClipsMin {
		clips = previewClipsMin
	}
	if clips > previewClipsMax {
		clips = previewClipsMax
	}

	start := duration * edgeSkipFraction
	window := duration * (1 - 2*edgeSkipFraction)
	segment := window / float64(clips)

	clipLen := total / float64(clips)
	if clipLen > segment {
		clipLen = segment
	}
	if clipLen < 1 {
		return reelPlan{}, fmt.Errorf("source too short for a preview reel (%.1fs)", duration)
	}

	return reelPlan{clips: clips, clipLen: clipLen, start: start, segment: segment}, nil
}

// renderClip encodes one preview clip. Previews always use software h264;
// they are short, and tying them to the job's encode engine buys nothing.
func (g *Generator) renderClip(ctx context.Context, video, out string, offset, length float64, quality int) error {
	runCtx, cancel := context.WithTimeout(ctx, clipTimeout)
	defer cancel()

	cmd := ffmpeg.NewCommandBuilder(g.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekTo(offset).
		Input(video).
		VideoFilter(fmt.Sprintf("scale=-2:%d", previewHeight)).
		VideoCodec("libx264").
		VideoPreset("veryfast").
		CRF(quality).
		AudioCodec("aac").
		AudioBitrate("128k").
		Duration(length).
		Output(out).
		Build()

	return cmd.Run(runCtx)
}

// concatClips stitches the rendered clips with the concat demuxer. The
// parts share codec parameters, so a stream copy is enough.
func (g *Generator) concatClips(ctx context.Context, listPath, out string) error {
	runCtx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	cmd := ffmpeg.NewCommandBuilder(g.ffmpegPath).
		HideBanner().
		Overwrite().
		InputArgs("-f", "concat", "-safe", "0").
		Input(listPath).
		OutputArgs("-c", "copy").
		FastStart().
		Output(out).
		Build()

	if err := cmd.Run(runCtx); err != nil {
		return fmt.Errorf("concatenating clips: %w", err)
	}
	return nil
}
