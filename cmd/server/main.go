// Package main provides the Slack gateway server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/droidagent/slack-gateway-go/internal/buildinfo"
	"github.com/droidagent/slack-gateway-go/internal/classify"
	"github.com/droidagent/slack-gateway-go/internal/config"
	"github.com/droidagent/slack-gateway-go/internal/dispatch"
	"github.com/droidagent/slack-gateway-go/internal/handler"
	"github.com/droidagent/slack-gateway-go/internal/health"
	"github.com/droidagent/slack-gateway-go/internal/logger"
	"github.com/droidagent/slack-gateway-go/internal/metrics"
	"github.com/droidagent/slack-gateway-go/internal/outbound"
	"github.com/droidagent/slack-gateway-go/internal/ratelimit"
	"github.com/droidagent/slack-gateway-go/internal/rules"
	"github.com/droidagent/slack-gateway-go/internal/sentry"
	"github.com/droidagent/slack-gateway-go/internal/verify"
	"github.com/droidagent/slack-gateway-go/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("version", buildinfo.Version).
		WithField("commit", buildinfo.Commit).
		Info("Starting Slack gateway")

	// Initialize error reporting (no-op without a DSN)
	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Error reporting disabled")
	} else if sentry.IsEnabled() {
		log.Info("Error reporting initialized")
	}

	// Create Prometheus registry
	registry := prometheus.NewRegistry()

	// Register Go and process collectors
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())

	// Create metrics
	m := metrics.New(registry)
	log.Info("Metrics initialized")

	// Request verifier
	verifier, err := verify.New(cfg.SlackSigningSecret)
	if err != nil {
		log.WithError(err).Error("Failed to create verifier")
		os.Exit(1)
	}

	// Handler registry: scripts always, prompts when an API key is set
	registryCfg := handler.RegistryConfig{
		ScriptsDir: cfg.ScriptsDir,
		PromptsDir: cfg.PromptsDir,
	}
	if invoker := handler.NewOpenAIInvoker(cfg.OpenAIAPIKey, cfg.OpenAIModel); invoker != nil {
		registryCfg.PromptInvoker = invoker
		log.WithField("model", cfg.OpenAIModel).Info("Prompt handlers enabled")
	} else {
		log.Info("OpenAI API key not configured, prompt handlers disabled")
	}
	handlerRegistry := handler.NewRegistry(registryCfg)

	// Load rules
	store, err := rules.NewStore(cfg.RulesPath, handlerRegistry)
	if err != nil {
		log.WithError(err).WithField("path", cfg.RulesPath).Error("Failed to load rules")
		os.Exit(1)
	}
	summary := store.Current().Summarize()
	m.SetRulesLoaded(summary.Enabled)
	log.WithField("path", cfg.RulesPath).
		WithField("enabled", summary.Enabled).
		WithField("disabled", summary.Disabled).
		Info("Rules loaded")

	// Outbound poster and directory lookups
	poster := outbound.NewSlackPoster(cfg.SlackBotToken, log)
	directory := outbound.NewSlackDirectory(cfg.SlackBotToken, log)

	// Router
	router := dispatch.NewRouter(dispatch.Config{
		Store:          store,
		Poster:         poster,
		Metrics:        m,
		Log:            log,
		HandlerTimeout: cfg.HandlerTimeout,
		FailureNotice:  cfg.FailureNotice,
	})

	// Per-sender throttling keeps one noisy user from starving handlers
	var limiter *ratelimit.SenderLimiter
	if cfg.SenderRateTokens > 0 {
		limiter = ratelimit.NewSenderLimiter(ratelimit.Config{
			Burst:       cfg.SenderRateTokens,
			RefillRate:  cfg.SenderRateRefill,
			SweepPeriod: 5 * time.Minute,
		})
		defer limiter.Stop()
	}

	// Webhook handler
	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		Verifier:   verifier,
		Classifier: classify.New(cfg.SlackBotUserID, directory),
		Router:     router,
		Metrics:    m,
		Logger:     log,
		Limiter:    limiter,
	})
	log.Info("Webhook handler created")

	// Set Gin mode based on log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	engine := gin.New()

	// Add middleware
	engine.Use(gin.Recovery())
	engine.Use(securityHeadersMiddleware())
	engine.Use(loggingMiddleware(log, m))

	// Setup routes
	checker := health.New(store, cfg.ScriptsDir, cfg.PromptsDir)
	setupRoutes(engine, webhookHandler, checker, registry, cfg)

	// Create HTTP server with timeouts sized for webhook traffic.
	// See internal/config/timeouts.go for detailed explanations.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  config.WebhookHTTPRead,
		WriteTimeout: config.WebhookHTTPWrite,
		IdleTimeout:  config.WebhookHTTPIdle,
	}

	// Watch the rules file for edits and hot-swap the rule set
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in rules watcher")
			}
		}()
		if err := rules.Watch(ctx, store, m, log); err != nil {
			log.WithError(err).Warn("Rules watcher stopped; edits require a restart")
		}
	}()

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Stop the rules watcher
	cancel()
	select {
	case <-watchDone:
	case <-time.After(5 * time.Second):
		log.Warn("Timeout waiting for rules watcher to stop")
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting requests, then drain in-flight event processing
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if err := webhookHandler.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("In-flight event processing abandoned")
	}

	// Flush pending error reports
	sentry.Flush(2 * time.Second)

	log.Info("Server stopped")
}
