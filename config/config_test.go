package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFeeds_MissingFileUsesDefaults(t *testing.T) {
	feeds, err := LoadFeeds(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feeds) != 6 {
		t.Fatalf("expected 6 default feeds, got %d", len(feeds))
	}
	if feeds[0].RT != "CMNCMN" || feeds[0].Optional {
		t.Fatalf("unexpected first feed %+v", feeds[0])
	}
	if !feeds[3].Optional {
		t.Fatalf("expected %s to be optional", feeds[3].Name)
	}
}

func TestLoadFeeds_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	data := []byte("feeds:\n  - name: current\n    rt: CMNCMN\n  - name: pending\n    rt: PENDING\n    optional: true\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	feeds, err := LoadFeeds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(feeds) != 2 {
		t.Fatalf("expected 2 feeds, got %d", len(feeds))
	}
	if feeds[1].Name != "pending" || !feeds[1].Optional {
		t.Fatalf("unexpected feed %+v", feeds[1])
	}
}

func TestLoadFeeds_RejectsIncompleteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	if err := os.WriteFile(path, []byte("feeds:\n  - name: current\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFeeds(path); err == nil {
		t.Fatal("expected error for feed without rt")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Agent:  AgentConfig{Key: "2644"},
			HTTP:   HTTPConfig{PageSize: 500},
			Output: OutputConfig{Mode: OutputModeClassified},
			Feeds:  DefaultFeeds(),
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg := base()
	cfg.HTTP.PageSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero page size")
	}

	cfg = base()
	cfg.Output.Mode = "csv"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown output mode")
	}

	cfg = base()
	cfg.Feeds = append(cfg.Feeds, FeedConfig{Name: "current", RT: "X"})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate feed name")
	}

	cfg = base()
	cfg.Feeds[4].Name = "upcoming"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for classified mode without a comingSoon feed")
	}

	cfg.Output.Mode = OutputModeRaw
	if err := cfg.Validate(); err != nil {
		t.Fatalf("raw mode accepts any feed names, got %v", err)
	}
}

func TestLoad_EmptyPathsDisableSinks(t *testing.T) {
	t.Setenv("DB_PATH", "")
	t.Setenv("LOG_PATH", "")
	t.Setenv("TIMESTAMP_LOG", "")
	t.Setenv("FEEDS_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "" || cfg.LogPath != "" || cfg.Output.TimestampLog != "" {
		t.Fatalf("expected empty sink paths, got db=%q log=%q timestamps=%q", cfg.DBPath, cfg.LogPath, cfg.Output.TimestampLog)
	}
}

func TestLoad_UnsetPathsUseDefaults(t *testing.T) {
	for _, key := range []string{"DB_PATH", "LOG_PATH"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("FEEDS_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath != "listings.db" || cfg.LogPath != "fetch.log" {
		t.Fatalf("expected defaults, got db=%q log=%q", cfg.DBPath, cfg.LogPath)
	}
}

func TestLoad_AgentKeyOverride(t *testing.T) {
	t.Setenv("AGENT_KEY", "9999")
	t.Setenv("OUTPUT_MODE", OutputModeRaw)
	t.Setenv("FEEDS_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Key != "9999" {
		t.Fatalf("expected agent key 9999, got %s", cfg.Agent.Key)
	}
	if cfg.Output.Mode != OutputModeRaw {
		t.Fatalf("expected raw mode, got %s", cfg.Output.Mode)
	}
	if cfg.HTTP.PageSize != 500 {
		t.Fatalf("expected default page size 500, got %d", cfg.HTTP.PageSize)
	}
}
