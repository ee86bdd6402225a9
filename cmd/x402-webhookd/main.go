// Command x402-webhookd serves payment-gated webhook endpoints. Each
// configured endpoint is mounted as an independent gate; admitted requests
// are logged and, when configured, published to the agent registry at
// startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/x402gate/x402gate/registry"
	"github.com/x402gate/x402gate/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(config.Log.Level)
	slog.SetDefault(logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	sink := &logSink{logger: logger}

	gates := make([]*webhook.Gate, 0, len(config.Endpoints))
	for i := range config.Endpoints {
		gate, err := webhook.New(&config.Endpoints[i], sink, webhook.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("endpoint %q: %w", config.Endpoints[i].Path, err)
		}
		for _, method := range gate.Config().Methods {
			router.Method(method, gate.Config().Path, gate)
		}
		gates = append(gates, gate)
		logger.Info("webhook mounted",
			"path", gate.Config().Path,
			"methods", strings.Join(gate.Config().Methods, ","),
			"paymentRequired", !gate.Config().PaymentWaived())
	}

	if config.Registry.Publish && config.Registry.URL != "" {
		publishEndpoints(config, gates, logger)
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// publishEndpoints registers each payment-gated endpoint with the agent
// registry. Failures are logged, not fatal; the gateway serves either way.
func publishEndpoints(config *ServerConfig, gates []*webhook.Gate, logger *slog.Logger) {
	client := registry.NewClient(config.Registry.URL, config.Registry.APIKey)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, gate := range gates {
		cfg := gate.Config()
		agent := registry.Agent{
			Name:        strings.Trim(cfg.Path, "/"),
			Description: cfg.Description,
			URL:         fmt.Sprintf("http://%s:%d%s", config.Server.Host, config.Server.Port, cfg.Path),
		}
		if _, err := client.Publish(ctx, agent); err != nil {
			logger.Warn("registry publish failed", "path", cfg.Path, "error", err)
			continue
		}
		logger.Info("registry publish ok", "path", cfg.Path)
	}
}

// logSink is the default downstream: it logs the sanitized record. Deployments
// embedding the gate in a workflow host provide their own sink instead.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) Deliver(ctx context.Context, d *webhook.Delivery) (any, error) {
	s.logger.Info("webhook delivered",
		"executionId", d.Record.ExecutionID,
		"method", d.Record.Method,
		"url", d.Record.WebhookURL,
		"body", webhook.Sanitize(d.Record.Body))
	return map[string]any{"message": "Workflow was started"}, nil
}
