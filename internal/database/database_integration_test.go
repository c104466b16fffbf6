//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupMySQLContainer starts a disposable MySQL server and returns settings
// pointing at it. The container is terminated when the test ends.
func setupMySQLContainer(t *testing.T) Settings {
	t.Helper()

	ctx := context.Background()

	container, err := tcmysql.Run(ctx,
		"mysql:8.4",
		tcmysql.WithDatabase("starter"),
		tcmysql.WithUsername("app"),
		tcmysql.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(90*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return Settings{
		Host:            host,
		Port:            port.Port(),
		User:            "app",
		Password:        "secret",
		Name:            "starter",
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

func TestIntegration_MySQL(t *testing.T) {
	base := setupMySQLContainer(t)
	ctx := context.Background()

	t.Run("connection strategy reports its id", func(t *testing.T) {
		log, observed := newObservedLogger()
		s := base
		s.Strategy = StrategyConnection

		h, err := Open(ctx, s, log)
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Close() })

		assert.NotZero(t, h.ConnectionID())
		assert.Equal(t, 1, observed.FilterMessageSnippet("Connected to database with connection id:").Len())

		var id uint64
		require.NoError(t, h.Bun().NewRaw("SELECT CONNECTION_ID()").Scan(ctx, &id))
		assert.Equal(t, h.ConnectionID(), id, "the single connection is reused")
	})

	t.Run("wrong password is access denied", func(t *testing.T) {
		s := base
		s.Strategy = StrategyConnection
		s.Password = "wrong"

		h, err := Open(ctx, s, zap.NewNop())
		require.NotNil(t, h)
		t.Cleanup(func() { _ = h.Close() })

		var cerr *ConnectError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KindAccessDenied, cerr.Kind)
	})

	t.Run("missing password is access denied", func(t *testing.T) {
		s := base
		s.Strategy = StrategyConnection
		s.Password = ""

		_, err := Open(ctx, s, zap.NewNop())
		var cerr *ConnectError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KindAccessDenied, cerr.Kind)
	})

	t.Run("pool fails lazily on a database outside the grants", func(t *testing.T) {
		s := base
		s.Strategy = StrategyPool
		s.Name = "does_not_exist"

		h, err := Open(ctx, s, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Close() })

		var cerr *ConnectError
		require.ErrorAs(t, h.Ping(ctx), &cerr)
		assert.Equal(t, KindAccessDenied, cerr.Kind)
	})

	t.Run("pool serves queries", func(t *testing.T) {
		s := base
		s.Strategy = StrategyPool

		h, err := Open(ctx, s, zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Close() })

		require.NoError(t, h.Ping(ctx))

		var one int
		require.NoError(t, h.DB().QueryRowContext(ctx, "SELECT 1").Scan(&one))
		assert.Equal(t, 1, one)
		assert.Equal(t, 5, h.Stats().MaxOpenConnections)
	})
}
