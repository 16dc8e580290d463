package telemetry

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
	if cfg.ServiceName != "packdock" {
		t.Errorf("unexpected service name: %s", cfg.ServiceName)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing service name",
			mutate: func(c *Config) { c.ServiceName = "" },
			want:   "service name",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "loud" },
			want:   "log level",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			want:   "log format",
		},
		{
			name: "bad exporter when tracing enabled",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "carrier-pigeon"
			},
			want: "trace exporter",
		},
		{
			name:   "sampling rate out of range",
			mutate: func(c *Config) { c.Tracing.SamplingRate = 1.5 },
			want:   "sampling rate",
		},
		{
			name: "metrics enabled without address",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddress = ""
			},
			want: "listen address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

// TestMetricsNilSafety verifies that a disabled (nil) metrics handle can be
// called without panicking, so call sites never need nil checks.
func TestMetricsNilSafety(t *testing.T) {
	var m *Metrics
	m.RecordImportStarted()
	m.RecordImportCompleted("success", time.Second)
	m.RecordActionMutation("inserted")
	m.RecordError("storage")
}

func TestDisabledMetrics(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create disabled metrics: %v", err)
	}
	// Disabled metrics are inert but callable.
	m.RecordImportStarted()
	m.RecordImportCompleted("failure", time.Millisecond)
}

func TestEnabledMetrics(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true

	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	m.RecordImportStarted()
	m.RecordImportCompleted("success", 2*time.Second)
	m.RecordActionMutation("disabled")
	m.RecordError("lint")

	if m.Handler() == nil {
		t.Error("expected a scrape handler for enabled metrics")
	}
}
