package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/talentscore/internal/api/handler"
	"github.com/timmy/talentscore/internal/domain"
)

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [job-id]",
		Short: "Show one scoring job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.scoring().GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), handler.NewJobView(job))
		},
	}
}

func listCmd(a *app) *cobra.Command {
	var filter domain.ListFilter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scoring jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = domain.JobStatus(status)
			jobs, total, err := a.scoring().ListJobs(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROFILE\tSTATUS\tRETRIES\tUPDATED")
			for _, job := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", job.ID, job.ProfileID, job.Status, job.RetryCount, job.UpdatedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(w, "\n%d of %d jobs\n", len(jobs), total)
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, processing, completed, failed)")
	cmd.Flags().StringVar(&filter.ProfileID, "profile", "", "filter by profile ID")
	cmd.Flags().IntVar(&filter.Limit, "limit", domain.DefaultListLimit, "maximum number of jobs")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of jobs to skip")
	return cmd
}

func retryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id]",
		Short: "Move a failed job back to pending",
		Long:  "Move a failed job back to pending. A running API server dispatches it on its next sweep.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.scoring().RetryJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s is %s (retry %d of %d)\n", job.ID, job.Status, job.RetryCount, a.cfg.Scoring.MaxRetries)
			return nil
		},
	}
}

func staleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stale",
		Short: "List processing jobs with no recent progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.sweeper().ListStale(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stale jobs.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROFILE\tATTEMPTS\tLAST WRITE")
			for _, job := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", job.ID, job.ProfileID, job.Attempts, job.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func recoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recover [job-id]",
		Short: "Mark a stale processing job failed so it can be retried",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.sweeper().Recover(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s marked %s (%s)\n", job.ID, job.Status, domain.ErrorKindAbandoned)
			return nil
		},
	}
}

func auditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit [job-id]",
		Short: "Print the archived audit record of a job's latest execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.components.Archive == nil {
				return fmt.Errorf("audit archive is not configured (storage.enabled is false)")
			}
			job, err := a.components.Store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if job.ArchiveKey == "" {
				return fmt.Errorf("job %s has no audit record", job.ID)
			}
			record, err := a.components.Archive.Read(cmd.Context(), job.ArchiveKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), record)
		},
	}
}
