package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/procureline/engine/internal/alternatives"
	"github.com/procureline/engine/internal/assignment"
	"github.com/procureline/engine/internal/audit"
	"github.com/procureline/engine/internal/config"
	"github.com/procureline/engine/internal/fallback"
	"github.com/procureline/engine/internal/httpserver"
	"github.com/procureline/engine/internal/reasoning"
	"github.com/procureline/engine/internal/rules"
	"github.com/procureline/engine/internal/scoring"
	"github.com/procureline/engine/internal/selection"
	"github.com/procureline/engine/internal/vendors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			log.Fatalf("ping db: %v", err)
		}
	}

	auditStore, pgAudit := buildAuditStore(cfg, db)

	var provider vendors.Provider
	if db != nil {
		provider = vendors.NewPGProvider(db)
	} else {
		provider = vendors.NewMemoryProvider()
	}

	selector := selection.New(rules.NewEvaluator(), scoring.NewScorer())
	service := assignment.NewService(provider, rules.NewMemoryStore(rules.DefaultRules()), selector, auditStore, cfg.Criteria)
	fallbackSvc := fallback.NewService(fallback.NewMemoryCatalog(fallback.DefaultScenarios()))
	engine := assignment.NewEngine(service, reasoning.NewEngine(), alternatives.NewService(), fallbackSvc, auditStore)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.StreamingEnabled() {
		startStreamer(rootCtx, cfg, pgAudit)
	}

	server := httpserver.New(engine)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Assignment service listening on %s (audit=%s)", cfg.Addr, cfg.AuditBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("assignment server error: %v", err)
		}
	}()

	waitForShutdown(httpServer, cancel)
}

func buildAuditStore(cfg config.Config, db *sql.DB) (audit.Store, *audit.PGStore) {
	switch cfg.AuditBackend {
	case "pg":
		pg := audit.NewPGStore(db)
		return pg, pg
	case "file":
		return audit.NewFileStore(cfg.AuditDir), nil
	default:
		return audit.NewMemoryStore(), nil
	}
}

func startStreamer(ctx context.Context, cfg config.Config, pgAudit *audit.PGStore) {
	producer, err := audit.NewKafkaProducer(audit.KafkaProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	archiver, err := audit.NewS3Archiver(ctx, cfg.S3Bucket, cfg.S3Prefix)
	if err != nil {
		log.Fatalf("s3 archiver: %v", err)
	}
	streamer := audit.NewStreamer(pgAudit, producer, archiver, audit.StreamerConfig{})
	go func() {
		if err := streamer.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("audit streamer stopped: %v", err)
		}
	}()
}

func waitForShutdown(srv *http.Server, cancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("assignment graceful shutdown: %v", err)
	}
}
