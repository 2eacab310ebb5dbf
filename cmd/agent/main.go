// cmd/agent/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bikeshop-agent/internal/catalog"
	awsclient "bikeshop-agent/internal/common/aws"
	"bikeshop-agent/internal/common/config"
	"bikeshop-agent/internal/common/database"
	"bikeshop-agent/internal/common/logger"
	"bikeshop-agent/internal/conversation"
	"bikeshop-agent/internal/crm"
	"bikeshop-agent/internal/embedding"
	"bikeshop-agent/internal/engine"
	"bikeshop-agent/internal/faq"
	"bikeshop-agent/internal/generation"
	"bikeshop-agent/internal/index"
	"bikeshop-agent/internal/intent"
	"bikeshop-agent/internal/lead"
	"bikeshop-agent/internal/respond"
	"bikeshop-agent/internal/retrieval"
	"bikeshop-agent/internal/server"
	"bikeshop-agent/internal/slots"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting bike shop agent...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	leadStore := lead.NewStore(pg.GetDB())
	if err := leadStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("lead schema setup failed", zap.Error(err))
	}

	// --- Catalog and vector index ---
	embedder := embedding.NewClient(cfg.Embedding.BaseURL, cfg.Embedding.Model, config.GetDuration(cfg.Embedding.Timeout))
	idx := index.NewCatalogIndex(embedder, cfg.Catalog.CacheDir, log)

	snap, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		zapLog.Fatal("catalog load failed", zap.Error(err))
	}
	zapLog.Info("Catalog loaded",
		zap.Int("items", len(snap.Items)),
		zap.Int("skipped", snap.Skipped),
	)

	// Embedding may be down at startup; the service comes up anyway and
	// retries on catalog changes and later queries.
	if _, err := idx.EnsureFresh(ctx, snap); err != nil {
		zapLog.Warn("initial index build failed, starting degraded", zap.Error(err))
	}

	if cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(cfg.Catalog.Path, log)
		if err != nil {
			zapLog.Warn("catalog watcher unavailable", zap.Error(err))
		} else {
			defer watcher.Close()
			watcher.Start(func() {
				snap, err := catalog.LoadFile(cfg.Catalog.Path)
				if err != nil {
					log.Error("catalog reload failed", map[string]interface{}{"error": err.Error()})
					return
				}
				if _, err := idx.EnsureFresh(context.Background(), snap); err != nil {
					log.Error("index refresh failed, serving degraded", map[string]interface{}{"error": err.Error()})
				}
			})
		}
	}

	retriever := retrieval.NewRetriever(idx, embedder, retrieval.Config{
		TopK:           cfg.Retrieval.TopK,
		MinScore:       cfg.Retrieval.MinScore,
		ExactScanLimit: cfg.Retrieval.ExactScanLimit,
	}, log)

	// --- FAQ source ---
	var faqSource faq.Source
	switch cfg.FAQ.Source {
	case "elasticsearch":
		esClient, err := database.NewElasticsearch(cfg.FAQ.ESAddresses, cfg.FAQ.ESUsername, cfg.FAQ.ESPassword)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := esClient.Ping(); err != nil {
			zapLog.Warn("elasticsearch unreachable at startup", zap.Error(err))
		}
		faqSource = faq.NewElasticsearchSource(esClient.Client, cfg.FAQ.Index)
	default:
		fileSource, err := faq.NewFileSource(cfg.FAQ.Path, cfg.Intent.FAQKeywords)
		if err != nil {
			zapLog.Warn("faq file unavailable, faq lookups disabled", zap.Error(err))
		} else {
			faqSource = fileSource
		}
	}

	// --- Lead pipeline ---
	var notifier *lead.Notifier
	if cfg.Leads.NotifyEnabled {
		sesClient, err := awsclient.NewSESClient(ctx, cfg.Leads.AWSRegion)
		if err != nil {
			zapLog.Warn("ses client failed, lead notifications disabled", zap.Error(err))
		} else {
			notifier = lead.NewNotifier(sesClient, cfg.Leads.NotifyFrom, splitRecipients(cfg.Leads.NotifyTo), log)
		}
	}

	crmClient := crm.NewZohoClient(cfg.CRM.BaseURL, cfg.CRM.OAuthToken, config.GetDuration(cfg.CRM.Timeout))
	leadPipeline := lead.NewPipeline(crmClient, leadStore, notifier, log)

	// --- Conversation engine ---
	convStore := conversation.NewStore(rdb.GetClient(), config.GetDuration(cfg.Database.Redis.ConversationTTL), log)
	classifier := intent.NewClassifier(cfg.Intent.BuyingPhrases, cfg.Intent.FAQKeywords, retriever.Categories)
	extractor := slots.NewExtractor(retriever.Categories)

	generator := generation.NewClient(
		cfg.Generation.BaseURL, cfg.Generation.Model,
		config.GetDuration(cfg.Generation.Timeout),
		cfg.Generation.Temperature, cfg.Generation.MaxTokens,
	)
	planner := respond.NewPlanner(generator, log)

	eng := engine.New(convStore, classifier, extractor, retriever, faqSource, planner, leadPipeline, log)

	// --- HTTP server ---
	srv := server.New(eng, retriever, idx, leadStore, rdb, pg, embedder, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(60 * time.Second),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
