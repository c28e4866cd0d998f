// Package bootstrap wires configuration into the stores, clients and
// archive shared by the API server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/timmy/talentscore/internal/config"
	"github.com/timmy/talentscore/internal/llm"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/prompts"
	"github.com/timmy/talentscore/internal/repository"
	"github.com/timmy/talentscore/internal/source"
	"github.com/timmy/talentscore/internal/source/jsonl"
	"github.com/timmy/talentscore/internal/storage"
	"gorm.io/gorm"
)

// Components are the long-lived collaborators built from configuration.
type Components struct {
	DB          *gorm.DB // nil for the memory driver
	Store       repository.ScoringJobStore
	Profiles    source.ProfileSource
	ProfileRepo *repository.ProfileRepository // nil for the memory driver
	Resolver    *prompts.Resolver
	Client      llm.Client
	Archive     *storage.AuditArchive // nil when storage is disabled
}

// Open builds all components. The LLM client is only created when withLLM
// is set; the CLI does not need one.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, withLLM bool) (*Components, error) {
	c := &Components{}
	builtins := prompts.NewBuiltinTemplates()

	if cfg.Database.Driver == "memory" {
		log.WithField("profiles_file", cfg.Sources.ProfilesFile).Warn("Using in-memory job store, jobs are lost on exit")
		c.Store = repository.NewMemoryScoringJobRepository()
		c.Profiles = jsonl.NewAdapter(cfg.Sources.ProfilesFile)
		c.Resolver = prompts.NewResolver(builtins)
	} else {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		c.DB = db
		c.Store = repository.NewScoringJobRepository(db)
		c.ProfileRepo = repository.NewProfileRepository(db)
		c.Profiles = c.ProfileRepo
		// Stored templates override the built-in rubrics with the same ID.
		c.Resolver = prompts.NewResolver(repository.NewPromptTemplateRepository(db), builtins)
	}

	if withLLM {
		client, err := llm.New(ctx, llm.Config{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			JSONMode:    cfg.LLM.JSONMode,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize llm client: %w", err)
		}
		if cfg.LLM.APIKey == "" {
			log.WithField(logger.FieldProvider, client.Provider()).Warn("LLM API key is not configured, every job will fail with auth_error")
		}
		c.Client = client
	}

	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		if s3, ok := objectStorage.(*storage.S3Storage); ok {
			if err := s3.EnsureBucket(ctx); err != nil {
				return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
			}
		}
		c.Archive = storage.NewAuditArchive(objectStorage)
	}

	return c, nil
}

// Ping checks the database connection. It is a no-op for the memory driver.
func (c *Components) Ping(ctx context.Context) error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection pool.
func (c *Components) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
