package database

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/01moynul/starter-api/internal/config"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	return zap.New(core), observed
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return strconv.Itoa(port)
}

func unreachableSettings(t *testing.T, strategy Strategy) Settings {
	return Settings{
		Host:            "127.0.0.1",
		Port:            closedPort(t),
		User:            "app",
		Password:        "secret",
		Name:            "starter",
		Strategy:        strategy,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnectTimeout:  2 * time.Second,
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{
		DBHost:            "db",
		DBPort:            "3306",
		DBUser:            "u",
		DBPass:            "p",
		DBName:            "n",
		DBStrategy:        config.StrategyPool,
		DBMaxOpenConns:    7,
		DBMaxIdleConns:    3,
		DBConnMaxLifetime: time.Minute,
		DBConnectTimeout:  time.Second,
		DBQueryLog:        true,
	}

	s := SettingsFromConfig(cfg)
	assert.Equal(t, Settings{
		Host:            "db",
		Port:            "3306",
		User:            "u",
		Password:        "p",
		Name:            "n",
		Strategy:        StrategyPool,
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: time.Minute,
		ConnectTimeout:  time.Second,
		QueryLog:        true,
	}, s)
}

func TestDSNRoundTrip(t *testing.T) {
	s := Settings{
		Host:           "db.internal",
		Port:           "3307",
		User:           "app",
		Password:       "p@ss:w/rd",
		Name:           "starter",
		ConnectTimeout: 5 * time.Second,
	}

	parsed, err := mysql.ParseDSN(s.DSN())
	require.NoError(t, err)

	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss:w/rd", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "starter", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 5*time.Second, parsed.Timeout)
}

func TestOpenRejectsUnknownStrategy(t *testing.T) {
	h, err := Open(context.Background(), Settings{Strategy: "cluster"}, nil)
	assert.Nil(t, h)
	require.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Contains(t, err.Error(), "cluster")
}

func TestOpenConnectionUnreachableLogsAndReturnsHandle(t *testing.T) {
	log, observed := newObservedLogger()

	h, err := Open(context.Background(), unreachableSettings(t, StrategyConnection), log)
	require.NotNil(t, h)
	t.Cleanup(func() { _ = h.Close() })

	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindUnreachable, cerr.Kind)
	assert.Equal(t, StrategyConnection, h.Strategy())
	assert.Zero(t, h.ConnectionID())
	assert.Equal(t, 1, h.DB().Stats().MaxOpenConnections)

	entries := observed.FilterMessage("Failed to connect to database").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "unreachable", entries[0].ContextMap()["kind"])
}

func TestOpenPoolIsLazy(t *testing.T) {
	log, observed := newObservedLogger()
	s := unreachableSettings(t, StrategyPool)

	h, err := Open(context.Background(), s, log)
	require.NoError(t, err)
	require.NotNil(t, h)
	t.Cleanup(func() { _ = h.Close() })

	assert.Equal(t, StrategyPool, h.Strategy())
	assert.Zero(t, h.ConnectionID())
	assert.Equal(t, 10, h.Stats().MaxOpenConnections)
	assert.Zero(t, h.Stats().OpenConnections)
	assert.Zero(t, observed.Len(), "pool strategy must not log at open time")

	// The failure only shows up on first use.
	err = h.Ping(context.Background())
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindUnreachable, cerr.Kind)
	assert.Equal(t, s.Addr(), cerr.Addr)
}

func TestBunViewSharesPool(t *testing.T) {
	h, err := Open(context.Background(), unreachableSettings(t, StrategyPool), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	b := h.Bun()
	require.NotNil(t, b)
	assert.Same(t, b, h.Bun())
	assert.Equal(t, dialect.MySQL, b.Dialect().Name())
	assert.Same(t, h.DB(), b.DB)
}

func TestCloseIsIdempotent(t *testing.T) {
	log, observed := newObservedLogger()
	h, err := Open(context.Background(), unreachableSettings(t, StrategyPool), log)
	require.NoError(t, err)

	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close())
	assert.Equal(t, 1, observed.FilterMessage("Database handle closed").Len())
	assert.Error(t, h.Ping(context.Background()))
}

func TestRequire(t *testing.T) {
	t.Run("passes through a healthy open", func(t *testing.T) {
		h, err := Open(context.Background(), unreachableSettings(t, StrategyPool), zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = h.Close() })

		got, err := Require(h, nil, true)
		require.NoError(t, err)
		assert.Same(t, h, got)
	})

	t.Run("keeps the handle when not required", func(t *testing.T) {
		log, observed := newObservedLogger()
		h, openErr := Open(context.Background(), unreachableSettings(t, StrategyConnection), log)
		require.Error(t, openErr)
		t.Cleanup(func() { _ = h.Close() })

		got, err := Require(h, openErr, false)
		require.NoError(t, err)
		assert.Same(t, h, got)
		assert.Zero(t, observed.FilterMessage("Database handle closed").Len())
	})

	t.Run("closes the handle when required", func(t *testing.T) {
		log, observed := newObservedLogger()
		h, openErr := Open(context.Background(), unreachableSettings(t, StrategyConnection), log)
		require.Error(t, openErr)

		got, err := Require(h, openErr, true)
		assert.Nil(t, got)
		var cerr *ConnectError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KindUnreachable, cerr.Kind)
		assert.Equal(t, 1, observed.FilterMessage("Database handle closed").Len())
		assert.Error(t, h.Ping(context.Background()))
	})

	t.Run("returns other errors regardless of policy", func(t *testing.T) {
		h, err := Open(context.Background(), Settings{Strategy: "cluster"}, nil)
		require.Error(t, err)

		got, rerr := Require(h, err, false)
		assert.Nil(t, got)
		assert.ErrorIs(t, rerr, ErrUnknownStrategy)
	})
}
