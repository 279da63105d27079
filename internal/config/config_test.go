package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Postgres: PostgresConfig{DSN: "postgres://localhost/benefits"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "invalid port", mutate: func(c *Config) { c.HTTP.Port = 0 },
			wantErr: "http.port must be between 1 and 65535, got 0"},
		{name: "missing dsn", mutate: func(c *Config) { c.Postgres.DSN = "" },
			wantErr: "postgres.dsn is required"},
		{name: "cache without redis", mutate: func(c *Config) { c.Embedding.Cache = true },
			wantErr: "embedding.cache requires redis.addrs"},
		{name: "cache with redis", mutate: func(c *Config) {
			c.Embedding.Cache = true
			c.Redis.Addrs = []string{"localhost:6379"}
		}},
		{name: "parser without key", mutate: func(c *Config) { c.Parser.Enabled = true },
			wantErr: "parser.api_key is required when the parser is enabled"},
		{name: "parser disabled without key", mutate: func(c *Config) { c.Parser.Enabled = false }},
		{name: "max benefits above top_k", mutate: func(c *Config) { c.Search.MaxBenefits = 21 },
			wantErr: "search.max_benefits and search.max_offers must not exceed search.top_k (20)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 || cfg.HTTP.WriteTimeoutSec != 30 || cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("http timeouts: %+v", cfg.HTTP)
	}
	if cfg.Embedding.Model != "intfloat/multilingual-e5-large" || cfg.Embedding.Dimensions != 1024 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Embedding.QueryPrefix != "query: " || cfg.Embedding.PassagePrefix != "passage: " {
		t.Errorf("e5 prefixes: %q / %q", cfg.Embedding.QueryPrefix, cfg.Embedding.PassagePrefix)
	}
	if cfg.Index.OversampleRatio != 3 || !cfg.Index.WidenEnabled() {
		t.Errorf("index defaults: %+v", cfg.Index)
	}
	if cfg.Search.TopK != 20 || cfg.Search.MaxBenefits != 10 || cfg.Search.MaxOffers != 10 || cfg.Search.HistorySize != 20 {
		t.Errorf("search defaults: %+v", cfg.Search)
	}
	if cfg.Postgres.MaxOpenConns != 10 || cfg.Postgres.ReadinessTimeout != 10 {
		t.Errorf("postgres defaults: %+v", cfg.Postgres)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	off := false
	cfg := Config{
		HTTP: HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Embedding: EmbeddingConfig{
			Model: "text-embedding-3-small", Dimensions: 512,
			PassagePrefix: "search_document: ",
		},
		Index:     IndexConfig{OversampleRatio: 5, Widen: &off},
		Search:    SearchConfig{TopK: 50},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 || cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" || cfg.Embedding.Dimensions != 512 {
		t.Errorf("embedding overridden: %+v", cfg.Embedding)
	}
	if cfg.Embedding.QueryPrefix != "query: " {
		t.Errorf("query prefix must default for any model, got %q", cfg.Embedding.QueryPrefix)
	}
	if cfg.Embedding.PassagePrefix != "search_document: " {
		t.Errorf("passage prefix overridden: %q", cfg.Embedding.PassagePrefix)
	}
	if cfg.Index.OversampleRatio != 5 || cfg.Index.WidenEnabled() {
		t.Errorf("index overridden: %+v", cfg.Index)
	}
	if cfg.Search.TopK != 50 {
		t.Errorf("top_k overridden: %d", cfg.Search.TopK)
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("BS_TEST_DSN", "postgres://db/benefits")
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	data := `
http:
  port: ${BS_TEST_PORT:-9090}
postgres:
  dsn: ${BS_TEST_DSN}
index:
  widen: false
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port default not applied: %d", cfg.HTTP.Port)
	}
	if cfg.Postgres.DSN != "postgres://db/benefits" {
		t.Errorf("dsn not expanded: %q", cfg.Postgres.DSN)
	}
	if cfg.Index.WidenEnabled() {
		t.Error("widen: explicit false must be kept")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error for missing dsn")
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
