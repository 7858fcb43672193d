package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/gyn-triage/internal/archive"
	"github.com/wolfman30/gyn-triage/internal/catalog"
	appconfig "github.com/wolfman30/gyn-triage/internal/config"
	"github.com/wolfman30/gyn-triage/internal/conversation"
	"github.com/wolfman30/gyn-triage/internal/notify"
	"github.com/wolfman30/gyn-triage/internal/observability/metrics"
	"github.com/wolfman30/gyn-triage/internal/sessions"
	"github.com/wolfman30/gyn-triage/internal/triage"
	"github.com/wolfman30/gyn-triage/pkg/logging"
)

// Runtime is the wired triage engine shared by the HTTP and websocket layers.
type Runtime struct {
	Catalog  *catalog.Catalog
	Sessions sessions.Store
	// Runner is the dispatcher when a queue is configured and the
	// orchestrator otherwise.
	Runner   conversation.TurnRunner
	Metrics  *metrics.TriageMetrics
	Registry *prometheus.Registry
	// Checks are dependency pings for /health.
	Checks map[string]func(context.Context) error

	closers []func(context.Context) error
}

// Close stops the dispatcher and releases clients in reverse build order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// LoadCatalog reads CATALOG_PATH or falls back to the embedded catalog.
// Errors are *catalog.ConfigError.
func LoadCatalog(cfg *appconfig.Config) (*catalog.Catalog, error) {
	if path := strings.TrimSpace(cfg.CatalogPath); path != "" {
		return catalog.LoadFile(path)
	}
	return catalog.LoadDefault()
}

// BuildRuntime wires catalog, LLM, stores, sinks and the turn runner from
// config. On error everything built so far is released.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	built := &Runtime{Checks: map[string]func(context.Context) error{}}
	defer func() {
		if err != nil {
			_ = built.Close(context.Background())
			rt = nil
		}
	}()
	rt = built

	cat, err := LoadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load catalog: %w", err)
	}
	rt.Catalog = cat
	logger.Info("condition catalog loaded", "conditions", len(cat.Conditions()), "groups", len(cat.Groups()))

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.Metrics = metrics.NewTriageMetrics(rt.Registry)

	llm, closeLLM, err := BuildLLMClient(ctx, cfg, awsCfg, rt.Metrics, logger)
	if err != nil {
		return nil, err
	}
	rt.onClose(func(context.Context) error { return closeLLM() })

	history, err := buildHistory(ctx, cfg, awsCfg, rt, logger)
	if err != nil {
		return nil, err
	}

	pool, err := BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		rt.Sessions = sessions.NewPostgresStore(pool)
		rt.Checks["postgres"] = pool.Ping
		rt.onClose(func(context.Context) error { pool.Close(); return nil })
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory session store")
		rt.Sessions = sessions.NewMemoryStore()
	}

	loc := cfg.Location()
	enricher := triage.NewEnricher(cat, triage.CycleCalculator{Location: loc}, logger, triage.WithDataQualityObserver(rt.Metrics))
	agent := conversation.NewLLMAgent(llm, cat, conversation.PromptBuilder{
		ClinicName: cfg.ClinicName,
		Catalog:    cat,
		Location:   loc,
	}, logger,
		conversation.WithMaxSteps(cfg.AgentMaxSteps),
		conversation.WithRejectionObserver(rt.Metrics),
	)

	orchestrator := conversation.NewOrchestrator(conversation.OrchestratorConfig{
		Agent:        agent,
		History:      history,
		Enricher:     enricher,
		Validator:    triage.Gate{Catalog: cat},
		Staff:        cat,
		Confirmation: conversation.NewLLMConfirmationGenerator(llm, ""),
		Summarizer:   conversation.NewLLMHandoffSummarizer(llm, ""),
		Sinks:        buildSinks(cfg, awsCfg, rt.Sessions, cat, logger),
		Metrics:      rt.Metrics,
		Tracer:       otel.Tracer("gyntriage.internal.conversation.orchestrator"),
		TurnTimeout:  cfg.TurnTimeout,
		Logger:       logger,
	})

	rt.Runner = buildRunner(cfg, awsCfg, orchestrator, rt, logger)
	return rt, nil
}

func buildHistory(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, rt *Runtime, logger *logging.Logger) (conversation.HistoryStore, error) {
	tracer := otel.Tracer("gyntriage.internal.conversation.history")
	client := BuildRedisClient(ctx, cfg, logger, false)
	if client == nil {
		if table := strings.TrimSpace(cfg.HistoryTable); table != "" {
			logger.Info("conversation history stored in dynamodb", "table", table)
			return conversation.NewDynamoHistoryStore(dynamodb.NewFromConfig(awsCfg), table, cfg.HistoryTTL, tracer), nil
		}
		logger.Warn("REDIS_ADDR and HISTORY_TABLE not set; conversation history is kept in memory")
		return conversation.NewMemoryHistoryStore(), nil
	}
	rt.onClose(func(context.Context) error { return client.Close() })
	rt.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return conversation.NewRedisHistoryStore(client, cfg.HistoryTTL, tracer), nil
}

func buildSinks(cfg *appconfig.Config, awsCfg aws.Config, store sessions.Store, cat *catalog.Catalog, logger *logging.Logger) []conversation.ResultSink {
	sinks := []conversation.ResultSink{sessions.NewRecorder(store, logger)}

	if bucket := strings.TrimSpace(cfg.ArchiveBucket); bucket != "" {
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		sinks = append(sinks, archive.NewStore(client, bucket, logger))
		logger.Info("packet archive enabled", "bucket", bucket)
	}

	if to := strings.TrimSpace(cfg.HandoffNotificationEmail); to != "" {
		sender := BuildEmailSender(cfg, awsCfg, logger)
		sinks = append(sinks, notify.NewHandoffNotifier(sender, to, cfg.ClinicName, cat, logger))
		logger.Info("handoff notifications enabled", "provider", cfg.EmailProvider)
	}
	return sinks
}

// BuildEmailSender picks the configured provider. A provider that is not
// fully configured falls back to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("SENDGRID_API_KEY not set; using stub email sender")
	case "ses":
		if s := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger); s != nil {
			return s
		}
	}
	return notify.NewStubEmailSender(logger)
}

func buildRunner(cfg *appconfig.Config, awsCfg aws.Config, orchestrator *conversation.Orchestrator, rt *Runtime, logger *logging.Logger) conversation.TurnRunner {
	opts := []conversation.DispatcherOption{conversation.WithWorkerCount(cfg.WorkerCount)}

	var dispatcher *conversation.Dispatcher
	switch {
	case cfg.UseMemoryQueue:
		dispatcher = conversation.NewDispatcher(orchestrator, conversation.NewMemoryQueue(0), logger, opts...)
		logger.Info("turns dispatched through in-memory queue", "workers", cfg.WorkerCount)
	case strings.TrimSpace(cfg.ConversationQueueURL) != "":
		queue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
		dispatcher = conversation.NewDispatcher(orchestrator, queue, logger, opts...)
		logger.Info("turns dispatched through SQS", "queue_url", cfg.ConversationQueueURL, "workers", cfg.WorkerCount)
	default:
		return orchestrator
	}

	rt.onClose(func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return dispatcher.Shutdown(shutdownCtx)
	})
	return dispatcher
}
