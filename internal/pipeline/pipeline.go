package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/compressr/internal/artifacts"
	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/httpclient"
	"github.com/jmylchreest/compressr/internal/jobs"
	"github.com/jmylchreest/compressr/internal/mediainfo"
	"github.com/jmylchreest/compressr/internal/models"
	"github.com/jmylchreest/compressr/internal/repository"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/storage"
	"github.com/jmylchreest/compressr/internal/util"
)

const (
	downloadsDir = "downloads"
	encodeDir    = "encode"

	persistTimeout = 5 * time.Second
	stderrExcerpt  = 1000
)

// Reporter throttles progress edits to the job's status message.
type Reporter interface {
	Report(ctx context.Context, current, total int64, ref chat.MessageRef, startedAt time.Time, label, filename string)
}

// Deps are the collaborators a Pipeline needs. Publisher may be a disabled
// instance; everything else is required.
type Deps struct {
	Transport  chat.Transport
	Reporter   Reporter
	Settings   *settings.Store
	Workspace  *storage.Workspace
	Downloader *httpclient.Downloader
	Prober     *ffmpeg.Prober
	FFmpegPath string
	Engine     ffmpeg.Detection
	Artifacts  *artifacts.Generator
	Publisher  *mediainfo.Publisher
	Runs       repository.RunRepository
	Registry   *jobs.CallbackRegistry
	Logger     *slog.Logger
}

// Pipeline runs admitted jobs through their stages, one job at a time.
type Pipeline struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "pipeline")),
	}
}

// runState carries everything one pass accumulates. Paths are kept
// workspace-relative; absolute twins are resolved once and reused.
type runState struct {
	job    *jobs.Job
	log    *slog.Logger
	status chat.MessageRef

	profile  settings.EncodeProfile
	output   settings.OutputSettings
	preview  settings.PreviewSettings
	thumbs   settings.ThumbnailSettings
	advanced settings.AdvancedSettings

	inputName string
	inputRel  string
	inputAbs  string
	outputRel string
	outputAbs string

	uploadName string
	outInfo    *ffmpeg.MediaInfo
	artifacts  *artifacts.Result
	uploadRef  chat.MessageRef

	stats     models.RunStats
	startedAt time.Time

	transcodeOK  bool
	uploadFailed bool
}

func (st *runState) displayName() string {
	if st.uploadName != "" {
		return st.uploadName
	}
	return st.inputName
}

// Run executes one job to a terminal state. The returned error is nil on
// success; cancellation surfaces as an error wrapping ErrCancelled. Cleanup
// and callback release happen on every exit path.
func (p *Pipeline) Run(job *jobs.Job) error {
	ctx := job.Context()
	st := &runState{
		job:       job,
		startedAt: time.Now(),
		status:    chat.MessageRef{ChatID: job.ChatID, MessageID: job.StatusMsgID},
		log: p.logger.With(
			slog.String("job_id", job.ID),
			slog.Int("seq", job.Seq),
			slog.String("kind", job.Kind()),
			slog.Int64("user_id", job.UserID),
		),
	}

	// Settings are snapshotted up front so a mid-run edit cannot split the
	// job across two configurations.
	st.profile = p.deps.Settings.ActiveProfile(job.UserID, p.deps.Engine.Hardware())
	st.output = p.deps.Settings.Output(job.UserID)
	st.preview = p.deps.Settings.Preview(job.UserID)
	st.thumbs = p.deps.Settings.Thumbnail(job.UserID)
	st.advanced = p.deps.Settings.Advanced(job.UserID)

	defer p.deps.Registry.ReleaseJob(job.Seq)
	defer p.cleanup(st)

	if st.status.IsZero() {
		ref, err := p.deps.Transport.SendMessage(ctx, job.ChatID, "🔄 Processing...")
		if err != nil {
			st.log.Warn("sending status message failed", "error", err)
		} else {
			st.status = ref
			job.StatusMsgID = ref.MessageID
		}
	}

	st.log.Info("job started", "filename", job.Payload.Name())

	stages := []struct {
		stage Stage
		fn    func(context.Context, *runState) error
	}{
		{StagePrepare, p.prepare},
		{StageDownload, p.download},
		{StageTranscode, p.transcode},
	}
	for _, s := range stages {
		start := time.Now()
		if err := s.fn(ctx, st); err != nil {
			return p.fail(st, asStageErr(s.stage, err))
		}
		st.log.Info("stage complete", "stage", string(s.stage), "duration_ms", time.Since(start).Milliseconds())
	}

	p.generateArtifacts(ctx, st)

	if err := p.upload(ctx, st); err != nil {
		return p.fail(st, asStageErr(StageUpload, err))
	}

	p.report(ctx, st)

	st.log.Info("job complete",
		"original_bytes", st.stats.OriginalBytes,
		"compressed_bytes", st.stats.CompressedBytes,
		"reduction_percent", fmt.Sprintf("%.2f", st.stats.ReductionPercent()),
	)
	return nil
}

func (p *Pipeline) prepare(ctx context.Context, st *runState) error {
	if err := ctx.Err(); err != nil {
		return stageErr(StagePrepare, "Cancelled", fmt.Errorf("%w: %w", ErrCancelled, err))
	}

	st.inputName = sanitizeFilename(st.job.Payload.Name())

	for _, dir := range []string{downloadsDir, encodeDir} {
		if err := p.deps.Workspace.MkdirAll(dir); err != nil {
			return stageErr(StagePrepare, "Workspace unavailable", err)
		}
	}

	rel := filepath.Join(downloadsDir, st.inputName)
	abs, err := p.deps.Workspace.ResolvePath(rel)
	if err != nil {
		return stageErr(StagePrepare, "Unsafe filename", err)
	}
	st.inputRel, st.inputAbs = rel, abs
	return nil
}

func (p *Pipeline) download(ctx context.Context, st *runState) error {
	start := time.Now()
	limit := int64(st.output.MaxFileSize) << 20

	p.editStatus(ctx, st, "📥 Downloading...")

	switch payload := st.job.Payload.(type) {
	case jobs.UploadPayload:
		if limit > 0 && payload.Size > limit {
			return p.downloadErr(&httpclient.TooLargeError{Size: payload.Size, Limit: limit})
		}
		if err := p.fetchUpload(ctx, st, payload, limit); err != nil {
			return p.downloadErr(err)
		}
	case jobs.LinkPayload:
		res, err := p.deps.Downloader.Download(ctx, httpclient.DownloadRequest{
			URL:          payload.URL,
			Dir:          filepath.Dir(st.inputAbs),
			FallbackName: st.inputName,
			MaxBytes:     limit,
			SanitizeName: sanitizeFilename,
			Progress:     httpclient.Progress(p.progress(st, "Downloading")),
		})
		if err != nil {
			return p.downloadErr(err)
		}
		st.inputName = res.Name
		st.inputRel = filepath.Join(downloadsDir, res.Name)
		st.inputAbs = res.Path
	default:
		return stageErr(StageDownload, "Unsupported submission", fmt.Errorf("payload type %T", payload))
	}

	comp, err := p.deps.Workspace.Decompress(st.inputRel)
	if err != nil {
		return stageErr(StageDownload, "Unpacking source failed", err)
	}
	if comp != storage.CompressionNone {
		st.log.Info("decompressed source", "format", comp.String())
	}

	size, err := p.deps.Workspace.Size(st.inputRel)
	if err != nil {
		return stageErr(StageDownload, "Downloaded file unreadable", err)
	}
	if size == 0 {
		return stageErr(StageDownload, "Downloaded file is empty", errors.New("zero-byte download"))
	}
	st.stats.OriginalBytes = size
	st.stats.DownloadMS = time.Since(start).Milliseconds()
	return nil
}

// fetchUpload streams chat media to the prepared path. A failed or oversize
// stream leaves no partial file behind.
func (p *Pipeline) fetchUpload(ctx context.Context, st *runState, payload jobs.UploadPayload, limit int64) error {
	f, err := os.Create(st.inputAbs)
	if err != nil {
		return fmt.Errorf("creating download target: %w", err)
	}
	lw := &limitWriter{w: f, limit: limit}
	err = p.deps.Transport.DownloadMedia(ctx, payload.Locator, lw, p.progress(st, "Downloading"))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(st.inputAbs)
		return err
	}
	return nil
}

func (p *Pipeline) downloadErr(err error) *Error {
	var tooBig *httpclient.TooLargeError
	switch {
	case errors.As(err, &tooBig):
		summary := fmt.Sprintf("File too large: %.2f MB > %d MB",
			float64(tooBig.Size)/(1<<20), tooBig.Limit>>20)
		return stageErr(StageDownload, summary, fmt.Errorf("%w: %w", ErrTooLarge, err))
	case errors.Is(err, context.Canceled):
		return stageErr(StageDownload, "Cancelled", fmt.Errorf("%w: %w", ErrCancelled, err))
	default:
		return stageErr(StageDownload, "Download failed", err)
	}
}

func (p *Pipeline) transcode(ctx context.Context, st *runState) error {
	workName := strings.TrimSuffix(st.inputName, filepath.Ext(st.inputName)) + "_compressed.mp4"
	rel := filepath.Join(encodeDir, workName)
	abs, err := p.deps.Workspace.ResolvePath(rel)
	if err != nil {
		return stageErr(StageTranscode, "Unsafe output path", err)
	}
	st.outputRel, st.outputAbs = rel, abs

	key := p.deps.Registry.Register(st.outputAbs, st.inputAbs, st.job.Seq)
	rows := []chat.ButtonRow{
		{{Label: "📊 STATS", Data: "stats" + key}},
		{{Label: "❌ CANCEL", Data: "skip" + key}},
	}
	p.editStatus(ctx, st, compressingText(p.deps.Engine), rows...)

	var wm *ffmpeg.Watermark
	if st.advanced.WatermarkEnabled && strings.TrimSpace(st.advanced.WatermarkText) != "" {
		wm = &ffmpeg.Watermark{Text: st.advanced.WatermarkText, Position: st.advanced.WatermarkPosition}
	}

	cmd := ffmpeg.NewTranscodeCommand(p.deps.FFmpegPath, st.profile, st.inputAbs, st.outputAbs, wm, p.deps.Engine.Engine)
	st.log.Info("transcode starting", "command", cmd.String())

	start := time.Now()
	err = cmd.Run(ctx)
	st.stats.CompressMS = time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return stageErr(StageTranscode, "Cancelled", fmt.Errorf("%w: %w", ErrCancelled, err))
		}
		var runErr *ffmpeg.RunError
		if errors.As(err, &runErr) {
			return stageErr(StageTranscode, transcodeSummary(runErr), err)
		}
		return stageErr(StageTranscode, "Compression failed", err)
	}

	size, err := p.deps.Workspace.Size(st.outputRel)
	if err != nil || size == 0 {
		return stageErr(StageTranscode, "Compression produced no output", err)
	}
	st.stats.CompressedBytes = size
	st.stats.EngineLabel = p.deps.Engine.Label()
	st.transcodeOK = true
	return nil
}

func (p *Pipeline) generateArtifacts(ctx context.Context, st *runState) {
	start := time.Now()
	st.artifacts = p.deps.Artifacts.Generate(ctx, artifacts.Request{
		VideoPath: st.outputAbs,
		Tag:       strconv.Itoa(st.job.Seq),
		Thumbnail: st.thumbs,
		Preview:   st.preview,
	})
	st.log.Info("stage complete", "stage", string(StageArtifacts), "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pipeline) upload(ctx context.Context, st *runState) error {
	info, err := p.deps.Prober.Probe(ctx, st.outputAbs)
	if err != nil {
		st.log.Warn("probing output failed", "error", err)
		info = &ffmpeg.MediaInfo{}
	}
	st.outInfo = info

	height := info.Height
	if height == 0 {
		height = st.profile.ScaleHeight
	}
	st.uploadName = renderFilename(
		st.output.FilenameTemplate,
		st.inputName,
		p.deps.Settings.ActivePreset(st.job.UserID),
		resolutionTag(height),
		codecTag(st.profile.Codec),
		time.Now(),
	)

	caption := st.uploadName
	if info.DurationSeconds > 0 {
		caption += "\n⏱ " + util.HumanDurationMS(int64(info.DurationSeconds*1000))
	}

	p.editStatus(ctx, st, "📤 Uploading...")

	spec := chat.FileSpec{
		Path:       st.outputAbs,
		Name:       st.uploadName,
		Caption:    caption,
		AsDocument: strings.EqualFold(st.output.DefaultUploadMode, "document"),
	}
	if st.artifacts != nil {
		spec.ThumbnailPath = st.artifacts.ThumbnailPath
	}

	start := time.Now()
	ref, err := p.deps.Transport.SendFile(ctx, st.job.ChatID, spec, p.progress(st, "Uploading"))
	st.stats.UploadMS = time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return stageErr(StageUpload, "Cancelled", fmt.Errorf("%w: %w", ErrCancelled, err))
		}
		// Keep the output on disk so a later manual retry is possible;
		// the sweeper reclaims it eventually.
		st.uploadFailed = true
		return stageErr(StageUpload, "Upload failed", err)
	}
	st.uploadRef = ref

	p.sendArtifacts(ctx, st)
	return nil
}

func (p *Pipeline) sendArtifacts(ctx context.Context, st *runState) {
	if st.artifacts == nil {
		return
	}
	if st.artifacts.PreviewPath != "" {
		spec := chat.FileSpec{Path: st.artifacts.PreviewPath, Caption: "🎬 Preview"}
		if _, err := p.deps.Transport.SendFile(ctx, st.job.ChatID, spec, nil); err != nil {
			st.log.Warn("sending preview failed", "error", err)
		}
	}
	if len(st.artifacts.ScreenshotPaths) > 0 {
		if err := p.deps.Transport.SendPhotos(ctx, st.job.ChatID, st.artifacts.ScreenshotPaths); err != nil {
			st.log.Warn("sending screenshots failed", "error", err)
		}
	}
}

// report sends the stats reply, publishes media-info pages and persists the
// run record. Nothing in here can fail the job.
func (p *Pipeline) report(ctx context.Context, st *runState) {
	beforeURL := p.publishInfo(ctx, st, st.inputAbs, st.inputName, st.stats.OriginalBytes, nil)
	afterURL := p.publishInfo(ctx, st, st.outputAbs, st.uploadName, st.stats.CompressedBytes, st.outInfo)

	text := statsText(st.stats, beforeURL, afterURL)
	if _, err := p.deps.Transport.ReplyMessage(ctx, st.uploadRef, text); err != nil {
		st.log.Warn("sending stats reply failed", "error", err)
	}

	if !st.status.IsZero() {
		if err := p.deps.Transport.DeleteMessage(ctx, st.status); err != nil {
			st.log.Warn("deleting status message failed", "error", err)
		}
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	p.persistRun(pctx, st, models.RunStatusCompleted, "")
}

// publishInfo probes path (unless info is pre-probed) and publishes a
// media-info page, returning its URL or "" on any failure.
func (p *Pipeline) publishInfo(ctx context.Context, st *runState, path, name string, size int64, info *ffmpeg.MediaInfo) string {
	if p.deps.Publisher == nil {
		return ""
	}
	if info == nil {
		probed, err := p.deps.Prober.Probe(ctx, path)
		if err != nil {
			st.log.Warn("media info probe failed", "file", name, "error", err)
			probed = &ffmpeg.MediaInfo{}
		}
		info = probed
	}
	url, err := p.deps.Publisher.PublishReport(ctx, name, size, info)
	if err != nil {
		if errors.Is(err, mediainfo.ErrDisabled) {
			st.log.Debug("media info publishing disabled")
		} else {
			st.log.Warn("publishing media info failed", "file", name, "error", err)
		}
		return ""
	}
	return url
}

// cleanup enforces the retention rules on every exit path. The transcode
// output goes unless the upload failed; the source goes only when the user
// opted in and the transcode actually succeeded.
func (p *Pipeline) cleanup(st *runState) {
	if st.outputRel != "" && !st.uploadFailed {
		p.removeFile(st, st.outputRel)
	}
	if st.inputRel != "" && st.output.AutoDeleteOriginal && st.transcodeOK {
		p.removeFile(st, st.inputRel)
	}
}

func (p *Pipeline) removeFile(st *runState, rel string) {
	if err := p.deps.Workspace.Remove(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		st.log.Warn("cleanup failed", "path", rel, "error", err)
	}
}

func (p *Pipeline) fail(st *runState, perr *Error) error {
	cancelled := errors.Is(perr.Err, ErrCancelled) || errors.Is(perr.Err, context.Canceled)

	status := models.RunStatusFailed
	text := "❌ " + perr.Summary
	if cancelled {
		status = models.RunStatusCancelled
		text = "❌ Cancelled"
	}

	if cancelled {
		st.log.Info("job cancelled", "stage", string(perr.Stage))
	} else {
		st.log.Error("job failed", "stage", string(perr.Stage), "error", perr.Err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(st.job.Context()), persistTimeout)
	defer cancel()
	p.editStatus(ctx, st, text)
	p.persistRun(ctx, st, status, perr.Error())
	return perr
}

func (p *Pipeline) persistRun(ctx context.Context, st *runState, status models.RunStatus, errText string) {
	rec := &models.RunRecord{
		JobSeq:     st.job.Seq,
		UserID:     st.job.UserID,
		DedupeKey:  st.job.DedupeKey,
		Kind:       st.job.Kind(),
		Filename:   st.displayName(),
		Preset:     p.deps.Settings.ActivePreset(st.job.UserID),
		Status:     status,
		Error:      truncate(errText, 4000),
		StartedAt:  st.startedAt,
		FinishedAt: models.Now(),
	}
	rec.ApplyStats(st.stats)
	if err := p.deps.Runs.Create(ctx, rec); err != nil {
		st.log.Error("persisting run record failed", "error", err)
	}
}

func (p *Pipeline) editStatus(ctx context.Context, st *runState, text string, rows ...chat.ButtonRow) {
	if st.status.IsZero() {
		return
	}
	err := p.deps.Transport.EditMessage(ctx, st.status, text, rows...)
	if err != nil && !errors.Is(err, chat.ErrMessageNotModified) {
		st.log.Warn("status edit failed", "error", err)
	}
}

func (p *Pipeline) progress(st *runState, label string) chat.Progress {
	if p.deps.Reporter == nil {
		return nil
	}
	started := time.Now()
	return func(current, total int64) {
		p.deps.Reporter.Report(st.job.Context(), current, total, st.status, started, label, st.inputName)
	}
}

func compressingText(d ffmpeg.Detection) string {
	if d.Hardware() {
		return fmt.Sprintf("🔄 Compressing (🚀 %s)...", d.Label())
	}
	return "🔄 Compressing..."
}

func transcodeSummary(runErr *ffmpeg.RunError) string {
	excerpt := strings.TrimSpace(runErr.Stderr)
	if len(excerpt) > stderrExcerpt {
		excerpt = excerpt[:stderrExcerpt]
	}
	if excerpt == "" {
		return "COMPRESSION ERROR"
	}
	return "COMPRESSION ERROR\n```" + excerpt + "```"
}

func statsText(s models.RunStats, beforeURL, afterURL string) string {
	var b strings.Builder
	b.WriteString("📊 **COMPRESSION COMPLETE**\n\n")
	fmt.Fprintf(&b, "📁 **Original Size**: %s\n", util.HumanBytes(s.OriginalBytes))
	fmt.Fprintf(&b, "📦 **Compressed Size**: %s\n", util.HumanBytes(s.CompressedBytes))
	fmt.Fprintf(&b, "📉 **Compression**: %.2f%%\n\n", s.ReductionPercent())
	fmt.Fprintf(&b, "⏱ **Downloaded in**: %s\n", util.HumanDurationMS(s.DownloadMS))
	fmt.Fprintf(&b, "⚡ **Compressed in**: %s\n", util.HumanDurationMS(s.CompressMS))
	fmt.Fprintf(&b, "📤 **Uploaded in**: %s\n", util.HumanDurationMS(s.UploadMS))
	if s.EngineLabel != "" && s.EngineLabel != "CPU" {
		fmt.Fprintf(&b, "🚀 **Accelerated by**: %s\n", s.EngineLabel)
	}
	if beforeURL != "" && afterURL != "" {
		fmt.Fprintf(&b, "\n📋 **MediaInfo**: [Before](%s) // [After](%s)", beforeURL, afterURL)
	}
	return b.String()
}

func asStageErr(stage Stage, err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return stageErr(stage, "Internal error", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// limitWriter rejects writes past limit so a lying transport cannot land an
// oversize file. limit 0 disables the check.
type limitWriter struct {
	w     io.Writer
	n     int64
	limit int64
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if lw.limit > 0 && lw.n+int64(len(p)) > lw.limit {
		return 0, &httpclient.TooLargeError{Size: lw.n + int64(len(p)), Limit: lw.limit}
	}
	n, err := lw.w.Write(p)
	lw.n += int64(n)
	return n, err
}
