package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/source/jsonl"
)

func importProfilesCmd(a *app) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import-profiles [file.jsonl]",
		Short: "Upsert profiles from a JSON Lines file into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src := jsonl.NewAdapter(args[0])

			imported := 0
			cursor := ""
			for {
				profiles, next, err := src.FetchBatch(ctx, cursor, batchSize)
				if err != nil {
					return err
				}
				for i := range profiles {
					if err := a.components.ProfileRepo.Upsert(ctx, &profiles[i]); err != nil {
						return fmt.Errorf("failed to upsert profile %s: %w", profiles[i].ID, err)
					}
					imported++
				}
				if next == "" {
					break
				}
				cursor = next
			}

			_, skipped, err := src.GetTotalCount(ctx)
			if err != nil {
				return err
			}
			a.log.WithFields(logger.Fields{
				logger.FieldSource: src.GetSourceID(),
				"imported":         imported,
				"skipped":          skipped,
			}).Info("Profile import completed")
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d profiles, skipped %d invalid lines\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "profiles per batch")
	return cmd
}
