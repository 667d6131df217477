package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsLedger/internal/config"
	"NewsLedger/internal/fetch"
	"NewsLedger/internal/infrastructure/llm"
	"NewsLedger/internal/infrastructure/parser"
	"NewsLedger/internal/infrastructure/scheduler"
	"NewsLedger/internal/infrastructure/storage"
	"NewsLedger/internal/infrastructure/telegram"
	"NewsLedger/internal/logging"
	"NewsLedger/internal/ports"
	"NewsLedger/internal/scanner"
	"NewsLedger/internal/usecase"
)

// Application wires config to adapters and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	ledger     *storage.SQLiteLedger
	reconciler *usecase.Reconciler
	logger     *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	ledger, err := storage.Open(cfg.Ledger.DSN, baseLogger.With("component", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewYahooScanner(
		httpClient,
		cfg.Discovery.SearchURL,
		cfg.Discovery.ArticlePrefix,
		baseLogger.With("component", "scanner.yahoo"),
	))

	keywords, err := config.LoadKeywords(cfg.Discovery.KeywordsFile)
	if err != nil {
		baseLogger.Warn("keyword file unavailable, relying on per-source keywords",
			"file", cfg.Discovery.KeywordsFile, "error", err)
	}
	source := parser.NewStrategySource(registry, cfg.Discovery.Sources, keywords,
		baseLogger.With("component", "source"))

	getter := fetch.NewGetter(httpClient, baseLogger.With("component", "getter"))
	extractor := parser.YahooExtractor{}
	bodies := fetch.NewBodyFetcher(getter, extractor, cfg.Fetch.PageDelay(),
		baseLogger.With("component", "fetch.body"))
	comments := fetch.NewCommentFetcher(getter, extractor, cfg.Fetch.PageDelay(),
		baseLogger.With("component", "fetch.comments"))

	var enricher *usecase.Enricher
	if cfg.Gemini.APIKey != "" {
		prompt, err := config.LoadPromptTemplate(cfg.Gemini)
		if err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("load prompt template: %w", err)
		}
		analyzer := llm.NewGeminiClient(cfg.Gemini, prompt, baseLogger.With("component", "gemini"))
		enricher = usecase.NewEnricher(ledger, analyzer,
			cfg.Gemini.Budget, cfg.Gemini.MaxChars, cfg.Fetch.RowDelay(),
			baseLogger.With("component", "enricher"))
	} else {
		baseLogger.Warn("no analysis api key configured, enrichment pass disabled")
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(
			cfg.Notifications.Telegram.BotToken,
			cfg.Notifications.Telegram.ChatID,
		)
	}

	reconciler := usecase.NewReconciler(usecase.ReconcilerDeps{
		Source:        source,
		Ledger:        ledger,
		Bodies:        bodies,
		Comments:      comments,
		Enricher:      enricher,
		Notifier:      notifier,
		ArticlePrefix: cfg.Discovery.ArticlePrefix,
		RecencyDays:   cfg.Fetch.RecencyDays,
		RowDelay:      cfg.Fetch.RowDelay(),
		Logger:        baseLogger.With("component", "reconciler"),
	})

	return &Application{
		cfg:        cfg,
		ledger:     ledger,
		reconciler: reconciler,
		logger:     baseLogger,
	}, nil
}

// Run performs a single reconciliation, or keeps running on the configured
// interval until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.ledger.Close()

	interval := a.cfg.Scheduler.Interval()
	if interval <= 0 {
		now := time.Now().In(a.cfg.Scheduler.Location())
		_, err := a.reconciler.Run(ctx, now)
		return err
	}

	driver := scheduler.NewIntervalScheduler(interval)
	runner := usecase.NewScheduler(driver, a.reconciler, a.logger.With("component", "scheduler"))
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()
	return runner.Stop(context.Background())
}
