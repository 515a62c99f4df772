package observability

import (
	"testing"

	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")

	cfg := LoadConfig(config.Config{AppName: "", Environment: "development", AppVersion: "1.2.3", OTLPEndpoint: "collector:4317"})
	assert.Equal(t, "vendorhub", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, ProtocolGRPC, cfg.OtelExporterProtocol)
	assert.Equal(t, 0.5, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("LOG_FORMAT", "Console")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "http/protobuf")
	t.Setenv("OTEL_SAMPLING_RATIO", "4")
	t.Setenv("DEPLOYMENT_ENV", "production")

	cfg := LoadConfig(config.Config{AppName: "vendorhub-api", Environment: "development"})
	assert.Equal(t, "vendorhub-api", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, ProtocolHTTP, cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
}

func TestParseRatio(t *testing.T) {
	assert.Equal(t, defaultSamplingRatio, parseRatio(""))
	assert.Equal(t, defaultSamplingRatio, parseRatio("often"))
	assert.Equal(t, 0.0, parseRatio("-1"))
	assert.Equal(t, 0.25, parseRatio(" 0.25 "))
}

func TestDebugFollowsLevelOutsideDev(t *testing.T) {
	assert.False(t, Config{Environment: "production", LogLevel: "info"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "debug"}.Debug())
}
