package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/wundergraph/cosmo/tracelink/pkg/otel/otelconfig"
)

const (
	DefaultConfigPath = "config.yaml"
)

type CustomStaticAttribute struct {
	Key   string `yaml:"key" validate:"required"`
	Value string `yaml:"value"`
}

type TraceLink struct {
	Enabled bool `yaml:"enabled" envDefault:"true" env:"TRACELINK_ENABLED"`
	// Debug logs tracing failures and a summary of every operation
	Debug bool `yaml:"debug" envDefault:"false" env:"TRACELINK_DEBUG"`
	// HeaderKey is a response header whose value is added to every trace
	HeaderKey  string                  `yaml:"header_key,omitempty" env:"TRACELINK_HEADER_KEY"`
	Attributes []CustomStaticAttribute `yaml:"attributes" validate:"dive"`
}

// AttributeMap returns the static attributes as a map. Later keys win.
func (t TraceLink) AttributeMap() map[string]string {
	m := make(map[string]string, len(t.Attributes))
	for _, a := range t.Attributes {
		m[a.Key] = a.Value
	}
	return m
}

type TracingExporterConfig struct {
	BatchTimeout  time.Duration `yaml:"batch_timeout,omitempty" envDefault:"10s"`
	ExportTimeout time.Duration `yaml:"export_timeout,omitempty" envDefault:"30s"`
}

type TracingExporter struct {
	Disabled              bool                `yaml:"disabled"`
	Exporter              otelconfig.Exporter `yaml:"exporter,omitempty" validate:"omitempty,oneof=http grpc stdout"`
	Endpoint              string              `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	HTTPPath              string              `yaml:"path,omitempty" envDefault:"/v1/traces"`
	Headers               map[string]string   `yaml:"headers,omitempty"`
	TracingExporterConfig `yaml:",inline"`
}

type PropagationConfig struct {
	TraceContext bool `yaml:"trace_context" envDefault:"true"`
	Jaeger       bool `yaml:"jaeger"`
	B3           bool `yaml:"b3"`
	Baggage      bool `yaml:"baggage"`
	Datadog      bool `yaml:"datadog"`
}

type RedactConfig struct {
	// Keys are span attribute keys, e.g. the configured header key
	Keys   []string `yaml:"keys,omitempty"`
	Method string   `yaml:"method" envDefault:"redact" validate:"omitempty,oneof=hash redact"`
}

type Tracing struct {
	Enabled      bool              `yaml:"enabled" envDefault:"true" env:"TRACING_ENABLED"`
	SamplingRate float64           `yaml:"sampling_rate" envDefault:"1" env:"TRACING_SAMPLING_RATE" validate:"gte=0,lte=1"`
	Exporters    []TracingExporter `yaml:"exporters" validate:"dive"`
	Propagation  PropagationConfig `yaml:"propagation"`
	Redact       RedactConfig      `yaml:"redact"`
}

type Prometheus struct {
	Enabled    bool   `yaml:"enabled" envDefault:"true" env:"PROMETHEUS_ENABLED"`
	Path       string `yaml:"path" envDefault:"/metrics" env:"PROMETHEUS_HTTP_PATH"`
	ListenAddr string `yaml:"listen_addr" envDefault:"127.0.0.1:8088" env:"PROMETHEUS_LISTEN_ADDR" validate:"required_if=Enabled true"`
}

type MetricsOTLPExporter struct {
	Disabled    bool                           `yaml:"disabled"`
	Exporter    otelconfig.Exporter            `yaml:"exporter" envDefault:"http" validate:"omitempty,oneof=http grpc"`
	Endpoint    string                         `yaml:"endpoint" validate:"required,url"`
	HTTPPath    string                         `yaml:"path" envDefault:"/v1/metrics"`
	Headers     map[string]string              `yaml:"headers"`
	Temporality otelconfig.ExporterTemporality `yaml:"temporality" validate:"omitempty,oneof=cumulative delta"`
}

type MetricsOTLP struct {
	Enabled   bool                  `yaml:"enabled" envDefault:"false" env:"METRICS_OTLP_ENABLED"`
	Exporters []MetricsOTLPExporter `yaml:"exporters" validate:"dive"`
}

type Metrics struct {
	OTLP       MetricsOTLP `yaml:"otlp"`
	Prometheus Prometheus  `yaml:"prometheus"`
}

type Telemetry struct {
	ServiceName string  `yaml:"service_name" envDefault:"cosmo-tracelink" env:"TELEMETRY_SERVICE_NAME"`
	Tracing     Tracing `yaml:"tracing"`
	Metrics     Metrics `yaml:"metrics"`
}

type ProbeOperation struct {
	// Name is sent as operationName and used for the trace name
	Name      string         `yaml:"name"`
	Query     string         `yaml:"query" validate:"required"`
	Variables map[string]any `yaml:"variables,omitempty"`
}

type Probe struct {
	Endpoint   string            `yaml:"endpoint" env:"PROBE_ENDPOINT" validate:"required,url"`
	Interval   time.Duration     `yaml:"interval" envDefault:"30s" env:"PROBE_INTERVAL" validate:"gt=0"`
	MaxJitter  time.Duration     `yaml:"max_jitter" envDefault:"5s" env:"PROBE_MAX_JITTER" validate:"gte=0"`
	Timeout    time.Duration     `yaml:"timeout" envDefault:"10s" env:"PROBE_TIMEOUT" validate:"gt=0"`
	Headers    map[string]string `yaml:"headers,omitempty" env:"PROBE_HEADERS"`
	Operations []ProbeOperation  `yaml:"operations" validate:"required,min=1,dive"`
}

type Config struct {
	Version string `yaml:"version,omitempty"`

	LogLevel string `yaml:"log_level" envDefault:"info" env:"LOG_LEVEL"`
	JSONLog  bool   `yaml:"json_log" envDefault:"true" env:"JSON_LOG"`

	ShutdownDelay time.Duration `yaml:"shutdown_delay" envDefault:"10s" env:"SHUTDOWN_DELAY"`

	TraceLink TraceLink `yaml:"tracelink"`
	Telemetry Telemetry `yaml:"telemetry"`
	Probe     Probe     `yaml:"probe"`
}

type LoadResult struct {
	Config Config
	// DefaultLoaded is false when the default config file did not exist
	DefaultLoaded bool
}

// LoadConfig builds the configuration from, in increasing priority, the
// envDefault tags, the environment (including .env files) and the YAML file.
// Environment variables referenced in the YAML file are expanded.
func LoadConfig(configFilePath string, envOverride string) (*LoadResult, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	if envOverride != "" {
		_ = godotenv.Overload(envOverride)
	}

	cfg := &LoadResult{
		Config:        Config{},
		DefaultLoaded: true,
	}

	// Try to load the environment variables into the config

	err := env.Parse(&cfg.Config)
	if err != nil {
		return nil, err
	}

	// Read the custom config file

	if configFilePath == "" {
		configFilePath = os.Getenv("CONFIG_PATH")
		if configFilePath == "" {
			configFilePath = DefaultConfigPath
		}
	}

	isDefaultConfigPath := configFilePath == DefaultConfigPath
	configFileBytes, err := os.ReadFile(configFilePath)
	if err != nil {
		if isDefaultConfigPath {
			cfg.DefaultLoaded = false
		} else {
			return nil, fmt.Errorf("could not read custom config file %s: %w", configFilePath, err)
		}
	}

	if configFileBytes != nil {
		configYamlData := os.ExpandEnv(string(configFileBytes))
		if err := yaml.Unmarshal([]byte(configYamlData), &cfg.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := validator.New().Struct(&cfg.Config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}
