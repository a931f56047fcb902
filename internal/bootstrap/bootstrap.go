package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/config"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/usecase"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/infrastructure/export/excel"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/infrastructure/llm/gemini"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/infrastructure/prompts"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/infrastructure/queue/nats"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/infrastructure/repository/postgres"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Repo     ports.RecordRepository
	Settings ports.SettingsRepository

	IngestUC    ports.RecordIngestor
	DedupeUC    ports.DuplicateDetector
	ScreeningUC ports.ScreeningService
	BatchUC     ports.BatchScreener
	Exporter    ports.ReportExporter

	closeFn func()
}

// Options carries per-process hooks that cannot come from the environment.
type Options struct {
	// Progress receives chunk-grained batch progress; nil disables reporting.
	Progress ports.ProgressFunc
	// OnChunk receives each chunk's classification duration.
	OnChunk ports.ChunkObserver
	// OnCredentialAttempt observes each credential attempt during rotation.
	OnCredentialAttempt gemini.AttemptFunc
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewRecordRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure records schema: %w", err)
	}
	settings := postgres.NewSettingsRepository(db)
	if err := settings.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure settings schema: %w", err)
	}

	defaults, err := prompts.Defaults()
	if err != nil {
		return nil, fmt.Errorf("load default prompts: %w", err)
	}
	if err := settings.SeedDefaults(ctx, defaults); err != nil {
		return nil, fmt.Errorf("seed default prompts: %w", err)
	}

	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init screening queue: %w", err)
	}

	client := gemini.New(cfg.GeminiURL, cfg.GeminiModel)
	rpm := cfg.GeminiRequestsPerMinute
	if rpm <= 0 {
		rpm = 15
	}
	onAttempt := opts.OnCredentialAttempt
	if onAttempt == nil {
		onAttempt = func(attempt, total int) {
			slog.Debug("classification_attempt", "attempt", attempt, "total", total)
		}
	}
	rotator := gemini.NewRotator(client.Generate, gemini.RotatorOptions{
		Executor:  resilience.New(resilience.DefaultPolicy()),
		Limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		OnAttempt: onAttempt,
	})

	ingestUC := usecase.NewIngestUseCase(repo)
	dedupeUC := usecase.NewDedupeUseCase(repo)
	screeningUC := usecase.NewScreeningUseCase(repo)
	batchUC := usecase.NewBatchScreeningUseCase(repo, settings, rotator, usecase.BatchOptions{
		Progress:         opts.Progress,
		ObserveChunk:     opts.OnChunk,
		DefaultBatchSize: cfg.BatchSize,
	})
	exporter := excel.New(cfg.ExportDir)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		Settings: settings,

		IngestUC:    ingestUC,
		DedupeUC:    dedupeUC,
		ScreeningUC: screeningUC,
		BatchUC:     batchUC,
		Exporter:    exporter,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
