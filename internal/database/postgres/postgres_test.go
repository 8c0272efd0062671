//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/pinalbum/internal/config"
	"github.com/kozaktomas/pinalbum/internal/database"
	"github.com/kozaktomas/pinalbum/internal/database/storetest"
)

func setupTestContainer(t *testing.T) (*config.DatabaseConfig, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	return cfg, func() { container.Terminate(ctx) }
}

func TestStoreContract(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	if cfg == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	storetest.Run(t, func(t *testing.T) database.AlbumStore {
		st, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("Failed to open store: %v", err)
		}
		// Every subtest starts from empty tables.
		if _, err := st.pool.DB().ExecContext(ctx, "TRUNCATE items, albums, locations"); err != nil {
			t.Fatalf("Failed to truncate tables: %v", err)
		}
		t.Cleanup(func() { st.Close() })
		return st
	})
}

func TestMigrate_Idempotent(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	if cfg == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	pool, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer pool.Close()

	for i := 0; i < 2; i++ {
		if err := pool.Migrate(ctx); err != nil {
			t.Fatalf("Migrate run %d failed: %v", i+1, err)
		}
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if len(versions) != 1 || versions[0] != "001_init.sql" {
		t.Errorf("Expected [001_init.sql], got %v", versions)
	}
}
