package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Detection.MaxResults != 8 {
		t.Errorf("MaxResults = %d, want 8", cfg.Detection.MaxResults)
	}
	if cfg.Detection.ConfidenceThreshold != 0.8 {
		t.Errorf("ConfidenceThreshold = %v, want 0.8", cfg.Detection.ConfidenceThreshold)
	}
	if cfg.Detection.AcceptanceThreshold != 0.75 {
		t.Errorf("AcceptanceThreshold = %v, want 0.75", cfg.Detection.AcceptanceThreshold)
	}
	if cfg.Detection.ChunkSize != 5 {
		t.Errorf("ChunkSize = %d, want 5", cfg.Detection.ChunkSize)
	}
	if cfg.Providers.Primary != ProviderOpenAI {
		t.Errorf("Primary = %q, want %q", cfg.Providers.Primary, ProviderOpenAI)
	}
	if cfg.Providers.Gemini.Model != "gemini-2.5-flash-lite" {
		t.Errorf("Gemini.Model = %q", cfg.Providers.Gemini.Model)
	}
	if cfg.Providers.OpenAI.Timeout != 60*time.Second {
		t.Errorf("OpenAI.Timeout = %v, want 60s", cfg.Providers.OpenAI.Timeout)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled by default")
	}
	if cfg.Image.MaxSizeBytes != 10*1024*1024 {
		t.Errorf("MaxSizeBytes = %d", cfg.Image.MaxSizeBytes)
	}
}

func TestLoadEnvBindings(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-openai")
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("DATABASE_URL", "file:test.db")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Providers.OpenAI.Configured() || cfg.Providers.OpenAI.APIKey != "sk-test-openai" {
		t.Errorf("OpenAI key not bound: %q", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Providers.Gemini.APIKey != "gm-test" {
		t.Errorf("Gemini key not bound: %q", cfg.Providers.Gemini.APIKey)
	}
	if cfg.Catalog.DSN != "file:test.db" {
		t.Errorf("DSN = %q", cfg.Catalog.DSN)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]interface{}
		wantErr string
	}{
		{name: "valid", set: nil},
		{name: "unknown provider", set: map[string]interface{}{"providers.primary": "claude"}, wantErr: "primary provider"},
		{name: "threshold out of range", set: map[string]interface{}{"detection.confidence_threshold": 1.5}, wantErr: "confidence_threshold"},
		{name: "zero chunk size", set: map[string]interface{}{"detection.chunk_size": 0}, wantErr: "chunk size"},
		{name: "unknown strategy", set: map[string]interface{}{"detection.strategy": "vector"}, wantErr: "strategy"},
		{name: "unknown catalog driver", set: map[string]interface{}{"catalog.driver": "mysql"}, wantErr: "catalog driver"},
		{name: "unknown cache driver", set: map[string]interface{}{"cache.enabled": true, "cache.driver": "memcached"}, wantErr: "cache driver"},
		{name: "redis cache", set: map[string]interface{}{"cache.enabled": true, "cache.driver": "redis"}},
		{name: "breaker without threshold", set: map[string]interface{}{"breaker.failure_threshold": 0}, wantErr: "breaker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Load() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "****"},
		{"short", "****"},
		{"sk-1234567890abcd", "sk-1...abcd"},
	}
	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
