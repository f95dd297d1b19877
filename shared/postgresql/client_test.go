package postgresql

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DataSourceName(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "discrete fields default sslmode",
			config: Config{Host: "db", Port: 5432, User: "clip", Password: "pw", Database: "clips"},
			want:   "host=db port=5432 user=clip password=pw dbname=clips sslmode=disable",
		},
		{
			name:   "explicit sslmode",
			config: Config{Host: "db", Port: 6432, User: "clip", Password: "pw", Database: "clips", SSLMode: "require"},
			want:   "host=db port=6432 user=clip password=pw dbname=clips sslmode=require",
		},
		{
			name:   "dsn wins",
			config: Config{DSN: "postgres://clip@db/clips", Host: "ignored"},
			want:   "postgres://clip@db/clips",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.dataSourceName())
		})
	}
}

func TestConfig_TargetOmitsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := Config{Host: "db", Port: 5432, User: "clip", Password: "hunter2", Database: "clips"}
	logger.Info("connecting", cfg.target())
	dsn := Config{DSN: "postgres://clip:hunter2@db/clips"}
	logger.Info("connecting", dsn.target())

	out := buf.String()
	assert.Contains(t, out, "target.host=db")
	assert.Contains(t, out, "target.database=clips")
	assert.Contains(t, out, "target=dsn")
	assert.NotContains(t, out, "hunter2")
}
