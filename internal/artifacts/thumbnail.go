package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"

	// Register decoders for the formats a custom thumbnail may arrive in.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
)

const (
	// thumbMaxSide is the longest allowed thumbnail dimension.
	thumbMaxSide = 320
	// thumbFetchCap bounds how much of a custom thumbnail URL is read.
	thumbFetchCap    = 10 << 20
	thumbJPEGQuality = 85
)

// thumbnail resolves the upload thumbnail for one job: a configured custom
// URL wins, auto-generation extracts a frame, and otherwise whatever already
// sits in the shared location (the startup default) is used. Returns the
// absolute path or empty when no thumbnail is available.
func (g *Generator) thumbnail(ctx context.Context, req Request, info *ffmpeg.MediaInfo) string {
	if url := req.Thumbnail.CustomThumbnailURL; url != "" {
		path, err := g.fetchThumbnail(ctx, url)
		if err == nil {
			return path
		}
		g.logger.Warn("custom thumbnail failed, falling back to auto",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}

	if req.Thumbnail.AutoGenerateThumbnail {
		path, err := g.extractThumbnail(ctx, req, info)
		if err == nil {
			return path
		}
		g.logger.Warn("thumbnail extraction failed", slog.String("error", err.Error()))
	}

	if exists, err := g.ws.Exists(thumbRelPath); err == nil && exists {
		path, err := g.ws.ResolvePath(thumbRelPath)
		if err == nil {
			return path
		}
	}
	return ""
}

// fetchThumbnail downloads an image, downscales it so the longest side fits
// thumbMaxSide and writes it as JPEG to the shared thumbnail location.
func (g *Generator) fetchThumbnail(ctx context.Context, url string) (string, error) {
	resp, err := g.client.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetching thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("fetching thumbnail: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, thumbFetchCap+1))
	if err != nil {
		return "", fmt.Errorf("reading thumbnail body: %w", err)
	}
	if len(data) > thumbFetchCap {
		return "", fmt.Errorf("thumbnail exceeds %d bytes", thumbFetchCap)
	}

	encoded, err := renderThumbnail(data)
	if err != nil {
		return "", err
	}
	if err := g.ws.AtomicWrite(thumbRelPath, encoded); err != nil {
		return "", fmt.Errorf("writing thumbnail: %w", err)
	}
	return g.ws.ResolvePath(thumbRelPath)
}

// renderThumbnail decodes image data, scales it to fit and re-encodes JPEG.
func renderThumbnail(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding thumbnail (format=%s): %w", format, err)
	}

	img = scaleToFit(img, thumbMaxSide)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleToFit downscales an image so its longest side is at most max.
// Images already within bounds pass through untouched.
func scaleToFit(img image.Image, max int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= max && h <= max {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = max
		nh = h * max / w
	} else {
		nh = max
		nw = w * max / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// extractThumbnail grabs one frame from the transcoded output at the
// configured percentage into the video.
func (g *Generator) extractThumbnail(ctx context.Context, req Request, info *ffmpeg.MediaInfo) (string, error) {
	if info.DurationSeconds <= 0 {
		return "", fmt.Errorf("unknown duration, cannot pick a frame")
	}

	ts := thumbnailTimestamp(info.DurationSeconds, req.Thumbnail.TimestampPercent)

	if err := g.ws.MkdirAll("thumb"); err != nil {
		return "", err
	}
	out, err := g.ws.ResolvePath(thumbRelPath)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	cmd := ffmpeg.NewCommandBuilder(g.ffmpegPath).
		HideBanner().
		Overwrite().
		SeekTo(ts).
		Input(req.VideoPath).
		VideoFilter(fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", thumbMaxSide, thumbMaxSide)).
		Frames(1).
		OutputArgs("-q:v", "2").
		NoAudio().
		Output(out).
		Build()

	if err := cmd.Run(runCtx); err != nil {
		return "", fmt.Errorf("extracting frame: %w", err)
	}
	return out, nil
}

// thumbnailTimestamp maps a percentage into a seek offset, clamped so the
// seek always lands inside the video.
func thumbnailTimestamp(duration float64, percent int) float64 {
	ts := duration * float64(percent) / 100
	if max := duration - 1; ts > max {
		ts = max
	}
	if ts < 0 {
		ts = 0
	}
	return ts
}
