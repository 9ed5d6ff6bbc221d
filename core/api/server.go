package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/cbaac/core/metrics"
	"github.com/davidahmann/cbaac/core/projectconfig"
)

const (
	RequestIDHeader = "X-Request-ID"
	shutdownTimeout = 10 * time.Second
)

type Config struct {
	Listen          string
	MaxRequestBytes int64
	AuditLog        string
	ProducerVersion string
	Logger          *slog.Logger
	Now             func() time.Time
}

func (config Config) withDefaults() Config {
	if strings.TrimSpace(config.Listen) == "" {
		config.Listen = projectconfig.DefaultListen
	}
	if config.MaxRequestBytes <= 0 {
		config.MaxRequestBytes = projectconfig.DefaultMaxRequestBytes
	}
	config.AuditLog = strings.TrimSpace(config.AuditLog)
	if config.ProducerVersion == "" {
		config.ProducerVersion = "0.0.0-dev"
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return config
}

// NewRouter builds the service routes with metrics registered on registry.
func NewRouter(config Config, registry *prometheus.Registry) http.Handler {
	config = config.withDefaults()
	router := chi.NewRouter()
	router.Use(withRequestID)
	NewHandler(config, metrics.New(registry)).Register(router)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	return router
}

// ListenAndServe runs the service until ctx is cancelled, then drains
// in-flight requests.
func ListenAndServe(ctx context.Context, config Config) error {
	config = config.withDefaults()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := &http.Server{
		Addr:              config.Listen,
		Handler:           NewRouter(config, registry),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		config.Logger.InfoContext(groupCtx, "cbaac service listening",
			"listen", config.Listen,
			"audit_log", config.AuditLog,
			"max_request_bytes", config.MaxRequestBytes,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		config.Logger.InfoContext(shutdownCtx, "cbaac service stopped")
		return nil
	})
	return group.Wait()
}

type requestIDKey struct{}

// RequestID returns the id assigned to the current request, if any.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))
	})
}
