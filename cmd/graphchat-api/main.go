package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PabloGalante/graphchat/internal/adapters/catalog"
	httpadapter "github.com/PabloGalante/graphchat/internal/adapters/http"
	firestorestore "github.com/PabloGalante/graphchat/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/graphchat/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/graphchat/internal/adapters/storage/redis"
	"github.com/PabloGalante/graphchat/internal/app/conversation"
	"github.com/PabloGalante/graphchat/internal/config"
	"github.com/PabloGalante/graphchat/internal/domain"
	"github.com/PabloGalante/graphchat/internal/observability"
)

const serviceName = "graphchat-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.InitLogger(cfg.LogLevel)

	tp, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint, cfg.TraceStdout)
	if err != nil {
		log.Fatalf("error initializing tracing: %v", err)
	}
	defer shutdown("tracer provider", tp.Shutdown)

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		mp, err := observability.InitMetrics(ctx, serviceName)
		if err != nil {
			log.Fatalf("error initializing metrics: %v", err)
		}
		defer shutdown("meter provider", mp.Shutdown)
		metricsHandler = promhttp.Handler()
	}

	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		log.Fatalf("error creating instruments: %v", err)
	}

	// Storage: Memory, Redis or Firestore
	var store domain.TranscriptStore

	switch cfg.StorageBackend {
	case config.BackendFirestore:
		logger.Info("using firestore storage", "project", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}
		defer fsStore.Close()
		store = fsStore

	case config.BackendRedis:
		logger.Info("using redis storage", "prefix", cfg.RedisPrefix, "ttl", cfg.RedisTTL.String())
		rStore, err := redisstore.NewStore(ctx, cfg.RedisURL, cfg.RedisPrefix, cfg.RedisTTL)
		if err != nil {
			log.Fatalf("error initializing Redis store: %v", err)
		}
		defer rStore.Close()
		store = rStore

	default:
		logger.Info("using in-memory storage")
		store = memstore.NewMessageStore()
	}

	templates, err := catalog.NewStatic()
	if err != nil {
		log.Fatalf("error loading workflow templates: %v", err)
	}

	// Conversation Service
	svc := conversation.NewService(store, templates, conversation.Options{
		AssistantName: cfg.AssistantName,
		ChunkDelay:    cfg.ChunkDelay,
		ThinkDelay:    cfg.ThinkDelay,
		Metrics:       metrics,
	})

	// HTTP server
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpadapter.NewServer(svc, httpadapter.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			Metrics:        metricsHandler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	logger.Info("graphchat API listening", "port", cfg.Port, "storage", cfg.StorageBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	<-idle
}

func shutdown(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("error shutting down %s: %v", name, err)
	}
}
