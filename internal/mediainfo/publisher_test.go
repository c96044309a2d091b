package mediainfo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/compressr/internal/config"
	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/httpclient"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakePasteHost mimics the telegra.ph API surface the publisher uses.
type fakePasteHost struct {
	*httptest.Server
	accounts int
	pages    int
	lastForm map[string]string
}

func newFakePasteHost(t *testing.T) *fakePasteHost {
	t.Helper()
	f := &fakePasteHost{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.lastForm = map[string]string{}
		for k := range r.PostForm {
			f.lastForm[k] = r.PostForm.Get(k)
		}

		switch r.URL.Path {
		case "/createAccount":
			f.accounts++
			w.Write([]byte(`{"ok":true,"result":{"access_token":"tok123"}}`))
		case "/createPage":
			f.pages++
			if r.PostForm.Get("access_token") != "tok123" {
				w.Write([]byte(`{"ok":false,"error":"ACCESS_TOKEN_INVALID"}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":{"url":"https://paste.example/p1"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Server.Close)
	return f
}

func newTestPublisher(t *testing.T, baseURL string) *Publisher {
	t.Helper()
	client := httpclient.New(httpclient.Config{
		Timeout:       5 * time.Second,
		RetryAttempts: 0,
		Logger:        newTestLogger(),
	})
	return NewPublisher(config.TelegraphConfig{
		BaseURL:    baseURL,
		ShortName:  "compressr",
		AuthorName: "compressr",
	}, client, newTestLogger())
}

func TestPublisher_Publish(t *testing.T) {
	host := newFakePasteHost(t)
	p := newTestPublisher(t, host.URL)

	url, err := p.Publish(context.Background(), "MediaInfo", []any{"hello"})
	require.NoError(t, err)
	assert.Equal(t, "https://paste.example/p1", url)
	assert.Equal(t, "MediaInfo", host.lastForm["title"])

	// Content travels as a JSON array.
	var content []any
	require.NoError(t, json.Unmarshal([]byte(host.lastForm["content"]), &content))
	assert.Equal(t, []any{"hello"}, content)
}

func TestPublisher_TokenCreatedOnce(t *testing.T) {
	host := newFakePasteHost(t)
	p := newTestPublisher(t, host.URL)

	_, err := p.Publish(context.Background(), "first", []any{"a"})
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), "second", []any{"b"})
	require.NoError(t, err)

	assert.Equal(t, 1, host.accounts)
	assert.Equal(t, 2, host.pages)
}

func TestPublisher_SetAuthor(t *testing.T) {
	host := newFakePasteHost(t)
	p := newTestPublisher(t, host.URL)
	p.SetAuthor("compressr_bot", "https://t.me/compressr_bot")

	_, err := p.Publish(context.Background(), "MediaInfo", []any{"x"})
	require.NoError(t, err)

	assert.Equal(t, "compressr_bot", host.lastForm["author_name"])
	assert.Equal(t, "https://t.me/compressr_bot", host.lastForm["author_url"])
}

func TestPublisher_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"SHORT_NAME_REQUIRED"}`))
	}))
	defer srv.Close()

	p := newTestPublisher(t, srv.URL)
	_, err := p.Publish(context.Background(), "t", []any{"x"})
	assert.ErrorContains(t, err, "SHORT_NAME_REQUIRED")
}

func TestPublisher_Disabled(t *testing.T) {
	p := newTestPublisher(t, "")
	_, err := p.Publish(context.Background(), "t", []any{"x"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestReport(t *testing.T) {
	info := &ffmpeg.MediaInfo{
		DurationSeconds: 125.5,
		Width:           1920,
		Height:          1080,
		VideoCodec:      "h264",
		AudioCodec:      "aac",
		BitRate:         2500000,
		FormatName:      "mov,mp4,m4a,3gp,3g2,mj2",
		FPS:             29.97,
	}

	content := Report("movie.mp4", 52428800, info)

	// General + Video + Audio, each a heading and a paragraph.
	require.Len(t, content, 6)

	data, err := json.Marshal(content)
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "Complete name: movie.mp4")
	assert.Contains(t, s, "File size: 50 MB")
	assert.Contains(t, s, "Duration: 2m, 5s, 500ms")
	assert.Contains(t, s, "Overall bit rate: 2500 kb/s")
	assert.Contains(t, s, "Resolution: 1920x1080")
	assert.Contains(t, s, "Frame rate: 29.970 fps")
	assert.Contains(t, s, "Codec: aac")
}

func TestReport_MinimalProbe(t *testing.T) {
	content := Report("clip.mp4", 0, &ffmpeg.MediaInfo{})

	// Just the General section with the name line.
	require.Len(t, content, 2)
	data, err := json.Marshal(content)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Complete name: clip.mp4")
	assert.NotContains(t, string(data), "Video")
}
