// Package main provides clipctl, a command line client for the clip repurposing API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/clip-repurposer/internal/client"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

var rootCmd = &cobra.Command{
	Use:           "clipctl",
	Short:         "Clip repurposing API client",
	Long:          "clipctl uploads videos for repurposing, follows job progress and downloads the generated clips.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	serverURL     string
	clientTimeout time.Duration
)

func init() {
	server := os.Getenv("CLIP_API_URL")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", server, "API base URL (env CLIP_API_URL)")
	rootCmd.PersistentFlags().DurationVar(&clientTimeout, "timeout", 0, "Per request timeout, 0 keeps the client default")
}

func newClient() *client.Client {
	if clientTimeout > 0 {
		return client.New(serverURL, client.WithHTTPClient(&http.Client{Timeout: clientTimeout}))
	}
	return client.New(serverURL)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
