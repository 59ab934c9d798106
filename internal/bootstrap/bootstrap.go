package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	httpadapter "github.com/dreamerdocs/document-analysis/internal/adapters/http"
	"github.com/dreamerdocs/document-analysis/internal/config"
	"github.com/dreamerdocs/document-analysis/internal/core/ports"
	"github.com/dreamerdocs/document-analysis/internal/core/usecase"
	rediscache "github.com/dreamerdocs/document-analysis/internal/infrastructure/cache/redis"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/extractor/document"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/llm/openai"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/payment/stripe"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/queue/nats"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/report/xlsx"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/repository/postgres"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/resilience"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/storage/localfs"
	"github.com/dreamerdocs/document-analysis/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue

	Uploader  ports.DocumentUploader
	Lifecycle ports.DocumentLifecycle
	Payments  ports.PaymentGate
	Analysis  ports.AnalysisService
	Reaper    ports.StaleAnalysisReaper
	Reports   ports.ReportExporter

	closeFn func()
}

// New wires every adapter and use case. Workflow metrics are registered on
// registerer, which is the registry served by the calling binary.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, registerer prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(format string, err error) (*App, error) {
		closeAll()
		return nil, fmt.Errorf(format, err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fail("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fail("init object storage: %w", err)
	}

	var upstreamObserver resilience.Observer
	if registerer != nil {
		upstreamObserver = metrics.NewResilienceMetrics(cfg.ServiceName, registerer)
	}

	redisClient, err := rediscache.New(ctx, rediscache.Options{
		URL:      cfg.RedisURL,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		return fail("init redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	resultCache := rediscache.NewResultCache(redisClient, cfg.ResultCacheTTL)
	eventGuard := rediscache.NewEventGuard(redisClient, cfg.WebhookIdempotencyTTL)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: newExecutor(cfg, logger.With("component", "nats"), upstreamObserver),
		Logger:             logger,
	})
	if err != nil {
		return fail("init message queue: %w", err)
	}
	closers = append(closers, queue.Close)

	paymentProvider, err := stripe.NewProvider(stripe.Config{
		SecretKey:      cfg.StripeSecretKey,
		PublishableKey: cfg.StripePublishableKey,
	}, newExecutor(cfg, logger.With("component", "stripe"), upstreamObserver))
	if err != nil {
		return fail("init payment provider: %w", err)
	}
	webhookVerifier, err := stripe.NewWebhookVerifier(cfg.StripeWebhookSecret)
	if err != nil {
		return fail("init webhook verifier: %w", err)
	}

	analyzer := openai.New(openai.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Language:    cfg.LLMLanguage,
		Timeout:     cfg.LLMRequestTimeout,

		MaxInputChars: cfg.LLMMaxInputChars,
	}, newExecutor(cfg, logger.With("component", "llm"), upstreamObserver))

	var observer ports.WorkflowObserver
	if registerer != nil {
		observer = metrics.NewWorkflowMetrics(cfg.ServiceName, registerer)
	}

	lifecycleUC := usecase.NewLifecycleUseCase(repo, paymentProvider, storage, cfg.Pricing, cfg.Currency, observer)
	uploadUC := usecase.NewUploadDocumentUseCase(lifecycleUC, storage, document.NewDetector(), document.NewExtractor())
	paymentUC := usecase.NewPaymentGateUseCase(repo, paymentProvider, webhookVerifier, eventGuard, queue, observer, logger)
	analysisUC := usecase.NewAnalysisUseCase(repo, storage, analyzer, resultCache, observer, logger, cfg.AnalysisTimeout)
	reaperUC := usecase.NewReaperUseCase(repo, logger)
	reportUC := usecase.NewReportUseCase(analysisUC, xlsx.NewRenderer())

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,

		Uploader:  uploadUC,
		Lifecycle: lifecycleUC,
		Payments:  paymentUC,
		Analysis:  analysisUC,
		Reaper:    reaperUC,
		Reports:   reportUC,

		closeFn: closeAll,
	}, nil
}

// HTTPServices exposes the inbound ports to the HTTP adapter.
func (a *App) HTTPServices() httpadapter.Services {
	return httpadapter.Services{
		Uploader:  a.Uploader,
		Lifecycle: a.Lifecycle,
		Payments:  a.Payments,
		Analysis:  a.Analysis,
		Reports:   a.Reports,
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newExecutor(cfg config.Config, logger *slog.Logger, observer resilience.Observer) *resilience.Executor {
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	policy.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	policy.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	policy.RetryJitter = cfg.ResilienceRetryJitter
	policy.BreakerEnabled = cfg.ResilienceBreakerEnabled
	policy.Logger = logger
	policy.Observer = observer
	return resilience.NewExecutor(policy)
}
