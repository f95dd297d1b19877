package main

import (
	"fmt"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/api/dto"
	"github.com/cuongbtq/clip-repurposer/internal/client"
	"github.com/cuongbtq/clip-repurposer/internal/domain"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow a job until it completes or fails",
	Long:  "Polls the job at a fixed interval and prints every progress change. Prints the results when the job completes.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", client.DefaultPollInterval, "Status poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	return watchJob(cmd, newClient(), args[0], watchInterval)
}

func watchJob(cmd *cobra.Command, c *client.Client, jobID string, interval time.Duration) error {
	out := cmd.OutOrStdout()

	var last string
	poller := client.NewPoller(c, client.PollerConfig{Interval: interval})
	job, err := poller.Wait(cmd.Context(), jobID, func(job *dto.JobDTO) {
		line := fmt.Sprintf("%s %d%%", job.Status, job.Progress)
		if line != last {
			fmt.Fprintf(out, "[%s] %s\n", time.Now().Format(time.TimeOnly), line)
			last = line
		}
	})
	if err != nil {
		return err
	}

	switch domain.JobStatus(job.Status) {
	case domain.JobStatusFailed:
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	case domain.JobStatusCompleted:
		results, err := c.Results(cmd.Context(), job.ID)
		if err != nil {
			return err
		}
		printResults(out, results)
		return nil
	default:
		// the poll was interrupted before the job ended
		return fmt.Errorf("stopped watching job %s while %s", job.ID, job.Status)
	}
}
