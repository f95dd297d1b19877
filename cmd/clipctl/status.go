package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/client"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the current state of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var (
	listStatus   string
	listPageSize int
	listCursor   string
)

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Only list jobs in this status (QUEUED, PROCESSING, COMPLETED, FAILED)")
	listCmd.Flags().IntVarP(&listPageSize, "page-size", "n", 20, "Jobs per page")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "Cursor returned by a previous page")

	rootCmd.AddCommand(statusCmd, listCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	job, err := newClient().GetJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printJob(cmd.OutOrStdout(), job)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	status := domain.JobStatus(strings.ToUpper(strings.TrimSpace(listStatus)))
	if status != "" && !status.IsValid() {
		return fmt.Errorf("unknown status %q", listStatus)
	}

	page, err := newClient().ListJobs(cmd.Context(), client.ListOptions{
		Status:   status,
		PageSize: listPageSize,
		Cursor:   listCursor,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tCREATED\tNAME")
	for _, job := range page.Jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n", job.ID, job.Status, job.Progress, job.CreatedAt, job.OriginalName)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if page.NextCursor != "" {
		fmt.Fprintf(out, "\nNext page: clipctl list --cursor %s\n", page.NextCursor)
	}
	return nil
}

func printJob(w io.Writer, job *dto.JobDTO) {
	fmt.Fprintf(w, "Job:       %s\n", job.ID)
	fmt.Fprintf(w, "Status:    %s (%d%%)\n", job.Status, job.Progress)
	fmt.Fprintf(w, "Video:     %s\n", job.OriginalName)
	fmt.Fprintf(w, "Platforms: %s\n", strings.Join(job.Platforms, ", "))
	fmt.Fprintf(w, "Created:   %s\n", job.CreatedAt)
	if job.StartedAt != nil {
		fmt.Fprintf(w, "Started:   %s\n", *job.StartedAt)
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(w, "Finished:  %s\n", *job.CompletedAt)
	}
	if job.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", job.Error)
	}
}
