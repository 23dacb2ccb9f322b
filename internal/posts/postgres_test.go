package posts

import (
	"context"
	"os"
	"testing"

	"github.com/Suhaibinator/SBlog/internal/config"
	"go.uber.org/zap"
)

// TestPostgresStore runs against the database named by SBLOG_TEST_DATABASE_URL.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("SBLOG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SBLOG_TEST_DATABASE_URL not set")
	}

	cfg := config.DatabaseConfig{Driver: config.DriverPostgres, URL: url, MaxOpenConns: 4, MaxIdleConns: 2}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	ctx := context.Background()
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if err := Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	// Running the migrations again is a no-op.
	if err := Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `TRUNCATE posts`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	exerciseStore(t, NewPostgresStore(db))
}
