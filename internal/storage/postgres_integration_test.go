//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/cuongbtq/clip-repurposer/shared/postgresql"
	"github.com/stretchr/testify/require"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/storage/...
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := postgresql.NewClient(&postgresql.Config{DSN: dsn, MaxOpenConns: 5, MaxIdleConns: 2}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	schema, err := os.ReadFile("../../deploy/postgres/init.sql")
	require.NoError(t, err)
	require.NoError(t, client.ExecScript(context.Background(), string(schema)))

	testRepository(t, func(t *testing.T) Repository {
		require.NoError(t, client.ExecScript(context.Background(),
			"TRUNCATE content_metrics, creative_texts, contents, jobs CASCADE"))
		return NewPostgres(client, logger)
	})
}
