package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/timmy/talentscore/internal/bootstrap"
	"github.com/timmy/talentscore/internal/config"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/service"
)

// app holds what subcommands share. Components are opened once the config
// flag has been parsed.
type app struct {
	log        *logger.Logger
	configPath string
	cfg        *config.Config
	components *bootstrap.Components
}

func newRootCmd(log *logger.Logger) *cobra.Command {
	a := &app{log: log}

	rootCmd := &cobra.Command{
		Use:           "scorectl",
		Short:         "Operator tool for talentscore scoring jobs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.components == nil {
				return nil
			}
			return a.components.Close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default is configs/config.yaml)")

	rootCmd.AddCommand(getCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(retryCmd(a))
	rootCmd.AddCommand(staleCmd(a))
	rootCmd.AddCommand(recoverCmd(a))
	rootCmd.AddCommand(auditCmd(a))
	rootCmd.AddCommand(importProfilesCmd(a))
	return rootCmd
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "memory" {
		return fmt.Errorf("scorectl needs a persistent database, driver is %q", cfg.Database.Driver)
	}
	components, err := bootstrap.Open(ctx, cfg, a.log, false)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.components = components
	return nil
}

// scoring builds a service without a dispatcher. Jobs it moves to pending
// are picked up by the API server's recovery sweeper.
func (a *app) scoring() *service.ScoringService {
	deps := service.ScoringDeps{
		Store:    a.components.Store,
		Profiles: a.components.Profiles,
		Resolver: a.components.Resolver,
		Logger:   a.log,
	}
	return service.NewScoringService(deps, service.ScoringConfig{
		MaxAttempts: a.cfg.Scoring.MaxAttempts,
		MaxRetries:  a.cfg.Scoring.MaxRetries,
	})
}

func (a *app) sweeper() *service.RecoverySweeper {
	return service.NewRecoverySweeper(a.components.Store, nil, nil, a.log, service.RecoveryConfig{
		StaleAfter:             a.cfg.Scoring.StaleAfter,
		PendingRedispatchAfter: a.cfg.Scoring.PendingRedispatchAfter,
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
