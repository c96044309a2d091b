package artifacts

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/httpclient"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/storage"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()

	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)

	client := httpclient.New(httpclient.Config{
		Timeout:       5 * time.Second,
		RetryAttempts: 0,
		Logger:        newTestLogger(),
	})

	// Bogus binaries: anything that shells out fails fast in these tests.
	return NewGenerator("/nonexistent/ffmpeg",
		ffmpeg.NewProber("/nonexistent/ffprobe"),
		client, ws, newTestLogger())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestScaleToFit(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		wantW int
		wantH int
	}{
		{"landscape downscale", 1920, 1080, 320, 180},
		{"portrait downscale", 1080, 1920, 180, 320},
		{"square downscale", 640, 640, 320, 320},
		{"already small", 100, 80, 100, 80},
		{"exactly at bound", 320, 200, 320, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := scaleToFit(src, thumbMaxSide)
			assert.Equal(t, tt.wantW, got.Bounds().Dx())
			assert.Equal(t, tt.wantH, got.Bounds().Dy())
		})
	}
}

func TestRenderThumbnail(t *testing.T) {
	out, err := renderThumbnail(pngBytes(t, 1600, 900))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 180, img.Bounds().Dy())
}

func TestRenderThumbnail_NotAnImage(t *testing.T) {
	_, err := renderThumbnail([]byte("definitely not pixels"))
	assert.ErrorContains(t, err, "decoding thumbnail")
}

func TestThumbnailTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		percent  int
		want     float64
	}{
		{"ten percent", 100, 10, 10},
		{"zero percent", 100, 0, 0},
		{"full percent clamps before the end", 100, 100, 99},
		{"short video clamps to start", 0.5, 50, 0},
		{"late seek clamped", 10, 99, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, thumbnailTimestamp(tt.duration, tt.percent), 0.001)
		})
	}
}

func TestFetchThumbnail_WritesSharedLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 800, 600))
	}))
	defer srv.Close()

	g := newTestGenerator(t)
	path, err := g.fetchThumbnail(context.Background(), srv.URL)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.LessOrEqual(t, img.Bounds().Dx(), thumbMaxSide)
	assert.LessOrEqual(t, img.Bounds().Dy(), thumbMaxSide)
}

func TestFetchThumbnail_RejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	g := newTestGenerator(t)
	_, err := g.fetchThumbnail(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 404")
}

func TestThumbnail_FallsBackToExistingDefault(t *testing.T) {
	g := newTestGenerator(t)
	require.NoError(t, g.ws.WriteFile(thumbRelPath, pngBytes(t, 100, 100)))

	req := Request{
		VideoPath: "/nonexistent/video.mp4",
		Tag:       "7",
		Thumbnail: settings.ThumbnailSettings{},
	}
	path := g.thumbnail(context.Background(), req, &ffmpeg.MediaInfo{})
	require.NotEmpty(t, path)
	assert.FileExists(t, path)
}

func TestThumbnail_NothingAvailable(t *testing.T) {
	g := newTestGenerator(t)

	req := Request{
		VideoPath: "/nonexistent/video.mp4",
		Tag:       "7",
		// Auto generation on, but the prober found no duration and the
		// binary does not exist.
		Thumbnail: settings.ThumbnailSettings{AutoGenerateThumbnail: true},
	}
	path := g.thumbnail(context.Background(), req, &ffmpeg.MediaInfo{})
	assert.Empty(t, path)
}

func TestEnsureDefaultThumbnail(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(pngBytes(t, 320, 320))
	}))
	defer srv.Close()

	g := newTestGenerator(t)
	require.NoError(t, g.EnsureDefaultThumbnail(context.Background(), srv.URL))
	assert.Equal(t, 1, calls)

	// A present thumbnail is never re-fetched.
	require.NoError(t, g.EnsureDefaultThumbnail(context.Background(), srv.URL))
	assert.Equal(t, 1, calls)
}

func TestEnsureDefaultThumbnail_NoURL(t *testing.T) {
	g := newTestGenerator(t)
	require.NoError(t, g.EnsureDefaultThumbnail(context.Background(), ""))

	exists, err := g.ws.Exists(thumbRelPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPlanReel(t *testing.T) {
	tests := []struct {
		name        string
		duration    float64
		total       float64
		wantClips   int
		wantClipLen float64
	}{
		{"short source uses minimum clips", 100, 10, 3, 10.0 / 3},
		{"ten minutes", 600, 10, 5, 2},
		{"long source clamps to maximum", 3600, 10, 8, 1.25},
		{"clip length capped by segment", 40, 45, 3, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planReel(tt.duration, tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClips, plan.clips)
			assert.InDelta(t, tt.wantClipLen, plan.clipLen, 0.001)
			assert.InDelta(t, tt.duration*edgeSkipFraction, plan.start, 0.001)

			lastEnd := plan.start + float64(plan.clips-1)*plan.segment + plan.clipLen
			assert.LessOrEqual(t, lastEnd, tt.duration*(1-edgeSkipFraction)+0.001)
		})
	}
}

func TestPlanReel_TooShort(t *testing.T) {
	_, err := planReel(2, 10)
	assert.ErrorContains(t, err, "too short")

	_, err = planReel(0, 10)
	assert.ErrorContains(t, err, "unknown duration")
}

func TestScreenshotTimes(t *testing.T) {
	times := screenshotTimes(100, 5)
	require.Len(t, times, 5)

	// Middle 90% split into five slices, capture centered in each.
	want := []float64{14, 32, 50, 68, 86}
	for i, ts := range times {
		assert.InDelta(t, want[i], ts, 0.001)
	}
}

func TestScreenshotTimes_SingleShot(t *testing.T) {
	times := screenshotTimes(100, 1)
	require.Len(t, times, 1)
	assert.InDelta(t, 50, times[0], 0.001)
}

func TestGenerate_BestEffort(t *testing.T) {
	g := newTestGenerator(t)
	require.NoError(t, g.ws.WriteFile(thumbRelPath, pngBytes(t, 64, 64)))

	// Probe fails, the preview and screenshots fail, yet the shared
	// thumbnail still comes back.
	res := g.Generate(context.Background(), Request{
		VideoPath: "/nonexistent/video.mp4",
		Tag:       "42",
		Preview: settings.PreviewSettings{
			EnableVideoPreview: true,
			EnableScreenshots:  true,
			ScreenshotCount:    3,
		},
	})

	require.NotNil(t, res)
	assert.NotEmpty(t, res.ThumbnailPath)
	assert.Empty(t, res.PreviewPath)
	assert.Empty(t, res.ScreenshotPaths)
}
