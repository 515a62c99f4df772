package observability

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/smallbiznis/vendorhub/internal/config"
)

const (
	defaultServiceName   = "vendorhub"
	defaultSamplingRatio = 0.1

	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// Config drives logging, tracing and OTLP metric export.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig overlays OTEL_* and LOG_* environment variables on the
// application config. Empty variables fall back to the defaults.
func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("deployment_env", cfg.Environment)
	v.SetDefault("service_version", cfg.AppVersion)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", cfg.OTLPEndpoint)
	v.SetDefault("otel_exporter_otlp_protocol", ProtocolGRPC)

	protocol := v.GetString("otel_exporter_otlp_protocol")
	if traces := strings.TrimSpace(v.GetString("otel_exporter_otlp_traces_protocol")); traces != "" {
		protocol = traces
	}

	name := strings.TrimSpace(cfg.AppName)
	if name == "" {
		name = defaultServiceName
	}

	return Config{
		ServiceName:          name,
		Environment:          strings.TrimSpace(v.GetString("deployment_env")),
		Version:              strings.TrimSpace(v.GetString("service_version")),
		LogLevel:             strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:            strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		OtelEnabled:          v.GetBool("otel_enabled"),
		OtelExporterEndpoint: strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint")),
		OtelExporterProtocol: normalizeProtocol(protocol),
		OtelSamplingRatio:    parseRatio(v.GetString("otel_sampling_ratio")),
	}
}

// Debug enables verbose request logs and stack traces: always in dev
// environments, elsewhere only with LOG_LEVEL=debug.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func normalizeProtocol(protocol string) string {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf", "http/json":
		return ProtocolHTTP
	default:
		return ProtocolGRPC
	}
}

// parseRatio reads a sampling ratio clamped to [0, 1]. Unset or malformed
// values use the default.
func parseRatio(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSamplingRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultSamplingRatio
	}
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}
