// Package main provides the Slack gateway server entry point.
package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/droidagent/slack-gateway-go/internal/config"
	"github.com/droidagent/slack-gateway-go/internal/health"
	"github.com/droidagent/slack-gateway-go/internal/webhook"
)

// setupRoutes configures all HTTP routes
func setupRoutes(router *gin.Engine, webhookHandler *webhook.Handler, checker *health.Checker, registry *prometheus.Registry, cfg *config.Config) {
	// Health check endpoints
	// Liveness Probe - checks if the application is alive (minimal check)
	// This should NEVER check dependencies - only that the process is running
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/healthz", healthHandler)
	router.HEAD("/healthz", healthHandler)

	// Readiness + rule summary for operators
	router.GET("/api/health", checker.Handle)
	router.HEAD("/api/health", checker.Handle)
	router.GET("/ready", checker.Handle)
	router.HEAD("/ready", checker.Handle)

	// Slack webhook endpoints
	router.POST("/slack/events", webhookHandler.HandleEvents)
	router.POST("/slack/interactive", webhookHandler.HandleInteractive)

	// Prometheus metrics endpoint
	metricsAuth := metricsAuthMiddleware(cfg.MetricsPassword != "", cfg.MetricsUsername, cfg.MetricsPassword)
	router.GET("/metrics", metricsAuth, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}
