package metric

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const HealthPath = "/health"

// NewPrometheusServer returns an unstarted server exposing registry on path
// and a liveness endpoint on HealthPath.
func NewPrometheusServer(logger *zap.Logger, listenAddr string, path string, registry *prometheus.Registry) (*http.Server, error) {
	logger = logger.With(zap.String("component", "prometheus_server"))

	errorLog, err := zap.NewStdLogAt(logger, zap.ErrorLevel)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          errorLog,
		Registry:          registry,
		Timeout:           time.Minute,
	}))
	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	svr := &http.Server{
		Addr:              listenAddr,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       30 * time.Second,
		ErrorLog:          errorLog,
		Handler:           r,
	}

	logger.Info("Prometheus metrics enabled", zap.String("listen_addr", listenAddr), zap.String("endpoint", path))

	return svr, nil
}
