package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <video>",
	Short: "Upload a video and start a repurposing job",
	Long:  "Uploads the video with the target platforms and prints the job id. With --watch it then follows the job until it ends and prints the results.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

var (
	submitPlatforms []string
	submitWatch     bool
	submitInterval  time.Duration
)

func init() {
	submitCmd.Flags().StringSliceVarP(&submitPlatforms, "platforms", "p", nil,
		"Target platforms, comma separated (youtube_shorts, youtube_ads, display_ads, performance_max)")
	submitCmd.Flags().BoolVarP(&submitWatch, "watch", "w", false, "Follow the job until it completes or fails")
	submitCmd.Flags().DurationVar(&submitInterval, "interval", 5*time.Second, "Status poll interval used with --watch")

	if err := submitCmd.MarkFlagRequired("platforms"); err != nil {
		panic(fmt.Sprintf("failed to mark platforms flag as required: %v", err))
	}

	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	platforms, err := domain.ParsePlatforms(submitPlatforms)
	if err != nil {
		return err
	}

	c := newClient()
	resp, err := c.CreateJob(cmd.Context(), args[0], platforms)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("job %s failed to launch: %w", resp.JobID, err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s %s for %s\n", resp.JobID, resp.Status, strings.Join(domain.PlatformStrings(platforms), ", "))

	if !submitWatch {
		return nil
	}
	return watchJob(cmd, c, resp.JobID, submitInterval)
}
