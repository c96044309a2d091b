// Package artifacts generates the auxiliary files attached to a finished
// job: the upload thumbnail, a multi-clip preview reel and a screenshot set.
// Every artifact is best-effort; failures are logged and the artifact is
// omitted, never failing the job.
package artifacts

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/httpclient"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/storage"
)

const (
	// thumbRelPath is the shared thumbnail location inside the workspace.
	thumbRelPath = "thumb/thumb.jpg"
	// tempDir is where per-job artifact outputs land; the sweeper reclaims
	// anything left behind.
	tempDir = "temp"

	// frameTimeout bounds single-frame extractions.
	frameTimeout = 30 * time.Second
	// clipTimeout bounds one preview clip encode.
	clipTimeout = 2 * time.Minute

	defaultPreviewSeconds = 10
	defaultPreviewCRF     = 28
	defaultScreenshots    = 5
)

// Request describes the artifacts wanted for one transcoded output.
type Request struct {
	// VideoPath is the absolute path of the transcoded output.
	VideoPath string
	// Tag namespaces this job's artifact filenames, typically the job
	// sequence number.
	Tag string

	Thumbnail settings.ThumbnailSettings
	Preview   settings.PreviewSettings
}

// Result holds the artifacts that were actually produced. Absent artifacts
// are empty.
type Result struct {
	ThumbnailPath   string
	PreviewPath     string
	ScreenshotPaths []string
}

// Generator renders artifacts with FFmpeg and fetches custom thumbnails
// over HTTP.
type Generator struct {
	ffmpegPath string
	prober     *ffmpeg.Prober
	client     *httpclient.Client
	ws         *storage.Workspace
	logger     *slog.Logger
}

// NewGenerator creates an artifact generator.
func NewGenerator(ffmpegPath string, prober *ffmpeg.Prober, client *httpclient.Client, ws *storage.Workspace, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		client:     client,
		ws:         ws,
		logger:     logger.With(slog.String("component", "artifacts")),
	}
}

// Generate produces every enabled artifact for the request. It never fails;
// whatever could be produced is in the result.
func (g *Generator) Generate(ctx context.Context, req Request) *Result {
	res := &Result{}

	info, err := g.prober.Probe(ctx, req.VideoPath)
	if err != nil {
		g.logger.Warn("probing output for artifacts", slog.String("error", err.Error()))
		info = &ffmpeg.MediaInfo{}
	}

	res.ThumbnailPath = g.thumbnail(ctx, req, info)

	if req.Preview.EnableVideoPreview {
		path, err := g.previewReel(ctx, req, info)
		if err != nil {
			g.logger.Warn("preview reel skipped", slog.String("error", err.Error()))
		} else {
			res.PreviewPath = path
		}
	}

	if req.Preview.EnableScreenshots {
		res.ScreenshotPaths = g.screenshots(ctx, req, info)
	}

	return res
}

// EnsureDefaultThumbnail fetches the configured default thumbnail into the
// shared location unless one is already there. Called once at startup; a
// fetch failure only means uploads go out without a thumbnail.
func (g *Generator) EnsureDefaultThumbnail(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	exists, err := g.ws.Exists(thumbRelPath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := g.fetchThumbnail(ctx, url); err != nil {
		return err
	}
	g.logger.Info("default thumbnail installed", slog.String("url", url))
	return nil
}
