package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/timmy/talentscore/internal/config"
	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/repository"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "jobs.db"), MaxOpenConns: 1, AutoMigrate: true},
		LLM:      config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", BaseURL: "http://127.0.0.1:1"},
		Storage:  config.StorageConfig{Enabled: true, Type: "memory", Bucket: "audit"},
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, testConfig(t), logger.GetDefault(), true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if _, ok := c.Store.(*repository.GormScoringJobRepository); !ok {
		t.Fatalf("store is %T", c.Store)
	}
	if c.ProfileRepo == nil || c.Archive == nil || c.Client == nil {
		t.Fatalf("missing components: %+v", c)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	// Built-in templates resolve through the stored-template fallback.
	prompt, err := c.Resolver.Resolve(ctx, domain.PromptSource{Kind: domain.PromptSourceTemplate, Ref: "ciso"}, &domain.Profile{ID: "p-1", FullName: "Lin Example"})
	if err != nil || prompt == "" {
		t.Fatalf("Resolve: %q %v", prompt, err)
	}
}

func TestOpenMemory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "profiles.jsonl")
	if err := os.WriteFile(file, []byte(`{"id":"p-1","full_name":"Lin Example"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Sources:  config.SourcesConfig{ProfilesFile: file},
	}

	c, err := Open(context.Background(), cfg, logger.GetDefault(), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.DB != nil || c.Client != nil || c.Archive != nil {
		t.Fatalf("unexpected components: %+v", c)
	}
	profile, err := c.Profiles.GetProfile(context.Background(), "p-1")
	if err != nil || profile.FullName != "Lin Example" {
		t.Fatalf("GetProfile: %+v %v", profile, err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
