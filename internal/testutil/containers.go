// Package testutil starts the backing services used by integration and e2e
// tests. Containers are removed when the test that started them ends.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/etvincen/boredapi/internal/database"
)

const (
	postgresImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"
	redisImage    = "redis:7-alpine"

	testDatabase = "boredapi"
	rustfsKey    = "rustfsadmin"
)

// Service is a started container and the host port mapped to its first
// exposed port.
type Service struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// Addr returns host:port.
func (s *Service) Addr() string {
	return s.Host + ":" + s.Port
}

func startService(ctx context.Context, t *testing.T, name string, req testcontainers.ContainerRequest) Service {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s container: %v", name, err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get %s endpoint: %v", name, err)
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		t.Fatalf("unexpected %s endpoint %q: %v", name, endpoint, err)
	}
	return Service{Container: container, Host: host, Port: port}
}

// PostgresContainer runs Postgres with the pgvector extension available.
type PostgresContainer struct {
	Service
}

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	return &PostgresContainer{Service: startService(ctx, t, "postgres", testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     testDatabase,
			"POSTGRES_PASSWORD": testDatabase,
			"POSTGRES_DB":       testDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	})}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%[1]s:%[1]s@%s/%[1]s?sslmode=disable", testDatabase, pc.Addr())
}

// RustFSContainer runs an S3-compatible object store.
type RustFSContainer struct {
	Service
	AccessKey string
	SecretKey string
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	return &RustFSContainer{
		Service: startService(ctx, t, "rustfs", testcontainers.ContainerRequest{
			Image:        rustfsImage,
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"RUSTFS_ACCESS_KEY": rustfsKey,
				"RUSTFS_SECRET_KEY": rustfsKey,
			},
			WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
		}),
		AccessKey: rustfsKey,
		SecretKey: rustfsKey,
	}
}

// Endpoint returns the S3 endpoint URL.
func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Addr()
}

// RedisContainer runs a Redis server for the shared suggestion index.
type RedisContainer struct {
	Service
}

func NewRedisContainer(ctx context.Context, t *testing.T) *RedisContainer {
	return &RedisContainer{Service: startService(ctx, t, "redis", testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort("6379/tcp"),
		).WithStartupTimeout(30 * time.Second),
	})}
}

// MigrationsDir returns the absolute path of the repository's migrations.
func MigrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// NewTestPool applies the migrations to pc and returns a pool that is
// closed when the test ends.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()
	url := pc.ConnectionString()

	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if err = database.Migrate(url, "file://"+MigrationsDir(), slog.Default()); err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: url, MaxConns: 5})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
