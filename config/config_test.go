package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{
		"server": {"address": ":9000", "jwt_secret": "s3cret"},
		"llm": {
			"providers": {
				"main": {"type": "openai", "api_key": "sk-x",
					"models": {"fast": {"name": "fast", "api_name": "gpt-4o-mini"}}}
			},
			"routing": {"classification": "fast", "fallback": "fast"}
		},
		"search": {"provider": "brave", "brave_api_key": "bk", "max_results": 5},
		"storage": {"driver": "postgres", "postgres": {"host": "db", "port": "5432", "user": "u", "password": "p", "dbname": "quester"}},
		"memory": {"episodic": {"enabled": true, "min_episodes": 0, "confidence_threshold": 0, "search_top_k": 0}}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg := LoadConfig(path)
	if cfg.Server.Address != ":9000" || cfg.Server.JWTSecret != "s3cret" {
		t.Fatalf("server config: %+v", cfg.Server)
	}
	if cfg.LLM.Routing.Classification != "fast" {
		t.Fatalf("routing: %+v", cfg.LLM.Routing)
	}
	if cfg.Search.Provider != "brave" || cfg.Search.APIKey() != "bk" {
		t.Fatalf("search config: %+v", cfg.Search)
	}
	if cfg.Search.Timeout != 20*time.Second {
		t.Fatalf("default timeout not applied: %v", cfg.Search.Timeout)
	}

	// Zeroed episodic knobs normalize to the safe floor.
	ep := cfg.Memory.Episodic
	if ep.MinEpisodes != 3 || ep.ConfidenceThreshold != 0.8 || ep.SearchTopK != 5 {
		t.Fatalf("episodic defaults: %+v", ep)
	}
}

func TestSearchConfigAPIKey(t *testing.T) {
	s := SearchConfig{TavilyAPIKey: "t", BraveAPIKey: "b", SerperAPIKey: "s"}
	cases := map[string]string{"tavily": "t", "brave": "b", "serper": "s", "": "t"}
	for provider, want := range cases {
		s.Provider = provider
		if got := s.APIKey(); got != want {
			t.Fatalf("APIKey for %q = %q, want %q", provider, got, want)
		}
	}
}

func TestSearchConfigValidate(t *testing.T) {
	if err := (SearchConfig{Provider: "tavily"}).Validate(); err != nil {
		t.Fatalf("tavily should validate: %v", err)
	}
	if err := (SearchConfig{Provider: "bing"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if err := (SearchConfig{MaxResults: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative max_results")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "quester"}
	want := "postgres://u:p@db:5432/quester?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	p.SSLMode = "require"
	if got := p.DSN(); got != "postgres://u:p@db:5432/quester?sslmode=require" {
		t.Fatalf("DSN with ssl = %q", got)
	}
	if err := (PostgresConfig{}).Validate(); err == nil {
		t.Fatalf("expected error without host/port")
	}
}

func TestStorageConfigValidate(t *testing.T) {
	if err := (StorageConfig{Driver: "memory"}).Validate(); err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	if err := (StorageConfig{Driver: "etcd"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if err := (StorageConfig{Driver: "postgres"}).Validate(); err == nil {
		t.Fatalf("postgres driver needs connection settings")
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: "6379"}
	if r.Addr() != "cache:6379" {
		t.Fatalf("Addr = %q", r.Addr())
	}
}
