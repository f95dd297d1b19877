package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"text/tabwriter"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "List the clips generated for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <file-url>",
	Short: "Download a generated file",
	Long:  "Downloads a video, thumbnail or metadata URL printed by results. Relative URLs are resolved against --server.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

var fetchOutput string

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "out", "o", "", "Destination file, defaults to the URL's base name in the current directory")
	rootCmd.AddCommand(resultsCmd, fetchCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	results, err := newClient().Results(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printResults(cmd.OutOrStdout(), results)
	return nil
}

func printResults(w io.Writer, results *dto.ResultsResponse) {
	if len(results.Results) == 0 {
		fmt.Fprintf(w, "No results for job %s (%s)\n", results.Job.ID, results.Job.Status)
		return
	}

	fmt.Fprintf(w, "Results for job %s from %s\n", results.Job.ID, results.Source)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tDURATION\tRATIO\tENGAGEMENT\tHEADLINE\tVIDEO")
	for _, r := range results.Results {
		engagement, headline := "-", "-"
		if e := r.Metadata.Engagement; e != nil {
			engagement = fmt.Sprintf("%.0f (%s)", e.PredictedEngagement, e.EngagementLevel)
		}
		if cr := r.Metadata.Creatives; cr != nil && cr.Headline != "" {
			headline = cr.Headline
		}
		fmt.Fprintf(tw, "%s\t%.1fs\t%s\t%s\t%s\t%s\n", r.Platform, r.Duration, r.AspectRatio, engagement, headline, r.VideoURL)
	}
	tw.Flush()
}

func runFetch(cmd *cobra.Command, args []string) (err error) {
	dest := fetchOutput
	if dest == "" {
		dest = path.Base(args[0])
		if dest == "." || dest == "/" {
			return errors.New("cannot derive a file name from the URL, use --out")
		}
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(dest)
		}
	}()

	n, err := newClient().Fetch(cmd.Context(), args[0], f)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", dest, n)
	return nil
}
