package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/compressr/internal/artifacts"
	"github.com/jmylchreest/compressr/internal/bot"
	"github.com/jmylchreest/compressr/internal/chat"
	"github.com/jmylchreest/compressr/internal/database"
	"github.com/jmylchreest/compressr/internal/database/migrations"
	"github.com/jmylchreest/compressr/internal/ffmpeg"
	internalhttp "github.com/jmylchreest/compressr/internal/http"
	"github.com/jmylchreest/compressr/internal/http/handlers"
	"github.com/jmylchreest/compressr/internal/httpclient"
	"github.com/jmylchreest/compressr/internal/jobs"
	"github.com/jmylchreest/compressr/internal/mediainfo"
	"github.com/jmylchreest/compressr/internal/pipeline"
	"github.com/jmylchreest/compressr/internal/repository"
	"github.com/jmylchreest/compressr/internal/scheduler"
	"github.com/jmylchreest/compressr/internal/settings"
	"github.com/jmylchreest/compressr/internal/storage"
	"github.com/jmylchreest/compressr/internal/sysinfo"
	"github.com/jmylchreest/compressr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compressr bot",
	Long: `Start the transcoding bot and its supporting services.

The bot connects to the chat transport, accepts video submissions from
the configured owners, and transcodes them one at a time. Alongside it
run the stale-file sweeper and the read-only diagnostics HTTP API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("workdir", "", "working directory for downloads and encodes (overrides storage.base_dir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workdir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("workdir")
	}

	logger := initLogger(cfg)

	if err := cfg.ValidateCredentials(); err != nil {
		logger.Error("missing chat credentials", slog.Any("error", err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Workspace and layout
	ws, err := storage.NewWorkspace(cfg.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("initializing workspace: %w", err)
	}
	layout := []string{cfg.Storage.DownloadDir, cfg.Storage.EncodeDir, cfg.Storage.TempDir, cfg.Storage.ThumbDir}
	if err := ws.EnsureLayout(layout...); err != nil {
		return fmt.Errorf("creating workspace layout: %w", err)
	}

	// FFmpeg binaries and encode engine
	binaries, err := ffmpeg.FindBinaries(ctx, cfg.FFmpeg)
	if err != nil {
		return fmt.Errorf("locating ffmpeg: %w", err)
	}
	engine := ffmpeg.DetectEngine(ctx, binaries.FFmpeg, cfg.FFmpeg.HardwareAccel, logger)
	logger.Info("encode engine selected",
		slog.String("engine", engine.Label()),
		slog.String("ffmpeg", binaries.FFmpeg),
		slog.String("version", binaries.Version),
	)

	// Settings store
	store, err := settings.NewStore(ws, cfg, engine.Engine == ffmpeg.EngineNVIDIA, logger)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	// Run-history database
	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	runs := repository.NewRunRepository(db.DB)

	// Queue, callback registry, HTTP download client
	queue := jobs.NewQueue(logger)
	registry := jobs.NewCallbackRegistry()

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.Download.Timeout
	clientCfg.RetryAttempts = cfg.Download.RetryAttempts
	clientCfg.RetryDelay = cfg.Download.RetryBaseDelay
	clientCfg.UserAgent = cfg.Download.UserAgent
	clientCfg.Logger = logger
	client := httpclient.New(clientCfg)
	downloader := httpclient.NewDownloader(client, logger)

	prober := ffmpeg.NewProber(binaries.FFprobe)
	generator := artifacts.NewGenerator(binaries.FFmpeg, prober, client, ws, logger)
	publisher := mediainfo.NewPublisher(cfg.Telegraph, client, logger)
	collector := sysinfo.NewCollector(ws.BaseDir())

	// Chat transport
	transport, err := chat.Dial(ctx, cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("connecting chat transport: %w", err)
	}

	reporter := bot.NewReporter(transport, store, engine, logger)

	pipe := pipeline.New(pipeline.Deps{
		Transport:  transport,
		Reporter:   reporter,
		Settings:   store,
		Workspace:  ws,
		Downloader: downloader,
		Prober:     prober,
		FFmpegPath: binaries.FFmpeg,
		Engine:     engine,
		Artifacts:  generator,
		Publisher:  publisher,
		Runs:       runs,
		Registry:   registry,
		Logger:     logger,
	})
	worker := pipeline.NewWorker(queue, pipe, logger)

	b := bot.New(bot.Deps{
		Transport: transport,
		Queue:     queue,
		Registry:  registry,
		Worker:    worker,
		Settings:  store,
		Workspace: ws,
		Runs:      runs,
		System:    collector,
		Engine:    engine,
		Owners:    cfg.Telegram.OwnerIDs(),
		Logger:    logger,
	})

	// Stale-file sweeper
	if cfg.Cleanup.Enabled {
		sweepDirs := []string{cfg.Storage.DownloadDir, cfg.Storage.EncodeDir, cfg.Storage.TempDir}
		sweeper, err := scheduler.New(ws, cfg.Cleanup, sweepDirs, logger)
		if err != nil {
			return fmt.Errorf("initializing sweeper: %w", err)
		}
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("starting sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// Diagnostics HTTP API
	if cfg.Server.Enabled {
		server := internalhttp.NewServer(cfg.Server, logger, version.Version)
		handlers.NewHealthHandler(version.Version).WithDB(db).Register(server.API())
		handlers.NewQueueHandler(queue).Register(server.API())
		handlers.NewRunsHandler(runs).Register(server.API())
		handlers.NewSystemHandler(collector, binaries, engine).Register(server.API())
		handlers.NewSettingsHandler(store).Register(server.API())

		group.Go(func() error {
			return server.ListenAndServe(groupCtx)
		})
	}

	group.Go(func() error {
		worker.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		return b.Run(groupCtx)
	})

	logger.Info("compressr started",
		slog.String("version", version.Version),
		slog.String("workdir", ws.BaseDir()),
		slog.Int("owners", len(cfg.Telegram.OwnerIDs())),
	)

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("service failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
