package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/01moynul/starter-api/internal/config"
	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"
)

// Strategy selects how the handle is opened.
type Strategy string

const (
	// StrategyConnection opens one connection eagerly and reports the outcome.
	StrategyConnection Strategy = config.StrategyConnection
	// StrategyPool configures a pool and defers connecting until first use.
	StrategyPool Strategy = config.StrategyPool
)

// Settings describes the target server and how to connect to it.
type Settings struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string

	Strategy        Strategy
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	QueryLog        bool
}

// SettingsFromConfig copies the connection fields out of the loaded configuration.
// No validation is performed on their contents.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPass,
		Name:            cfg.DBName,
		Strategy:        Strategy(cfg.DBStrategy),
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnectTimeout:  cfg.DBConnectTimeout,
		QueryLog:        cfg.DBQueryLog,
	}
}

// Addr is the host:port pair dialled by the driver.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// DSN formats the settings as a go-sql-driver data source name.
func (s Settings) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = s.Addr()
	cfg.DBName = s.Name
	cfg.ParseTime = true
	cfg.Timeout = s.ConnectTimeout
	return cfg.FormatDSN()
}

// Handle is the shared connectivity handle passed to everything that issues queries.
type Handle struct {
	db           *sql.DB
	strategy     Strategy
	addr         string
	connectionID uint64
	queryLog     bool
	log          *zap.Logger

	bunOnce sync.Once
	bunDB   *bun.DB

	closeOnce sync.Once
	closeErr  error
}

// RouteDriverLogs sends the MySQL driver's internal log lines through log.
func RouteDriverLogs(log *zap.Logger) error {
	return mysql.SetLogger(zap.NewStdLog(log.Named("mysql")))
}

// Open builds a handle using the configured strategy.
//
// With StrategyConnection a failed connection attempt is logged and returned
// as a *ConnectError together with a non-nil handle, leaving the caller to
// decide whether to continue. StrategyPool never dials here.
func Open(ctx context.Context, s Settings, log *zap.Logger) (*Handle, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch s.Strategy {
	case StrategyConnection:
		return openConnection(ctx, s, log)
	case StrategyPool:
		return openPool(s, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s.Strategy)
	}
}

func openConnection(ctx context.Context, s Settings, log *zap.Logger) (*Handle, error) {
	db, err := sql.Open("mysql", s.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single physical connection that is kept for the life of the process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	h := newHandle(db, StrategyConnection, s, log)

	id, err := fetchConnectionID(ctx, db)
	if err != nil {
		cerr := &ConnectError{Kind: Classify(err), Addr: s.Addr(), Err: err}
		log.Error("Failed to connect to database",
			zap.String("addr", cerr.Addr),
			zap.String("kind", cerr.Kind.String()),
			zap.Error(err),
		)
		return h, cerr
	}

	h.connectionID = id
	log.Info(fmt.Sprintf("Connected to database with connection id: %d", id),
		zap.Uint64("connection_id", id),
		zap.String("addr", s.Addr()),
	)
	return h, nil
}

func openPool(s Settings, log *zap.Logger) (*Handle, error) {
	db, err := sql.Open("mysql", s.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	db.SetMaxOpenConns(s.MaxOpenConns)
	db.SetMaxIdleConns(s.MaxIdleConns)
	db.SetConnMaxLifetime(s.ConnMaxLifetime)

	return newHandle(db, StrategyPool, s, log), nil
}

func newHandle(db *sql.DB, strategy Strategy, s Settings, log *zap.Logger) *Handle {
	return &Handle{
		db:       db,
		strategy: strategy,
		addr:     s.Addr(),
		queryLog: s.QueryLog,
		log:      log,
	}
}

// fetchConnectionID checks out a connection and asks the server for its id.
func fetchConnectionID(ctx context.Context, db *sql.DB) (uint64, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var id uint64
	if err := conn.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DB returns the underlying pool.
func (h *Handle) DB() *sql.DB {
	return h.db
}

// Strategy reports how the handle was opened.
func (h *Handle) Strategy() Strategy {
	return h.strategy
}

// ConnectionID is the server-side id reported when the eager strategy
// connected, or 0 when no connection was made at open time.
func (h *Handle) ConnectionID() uint64 {
	return h.connectionID
}

// Ping verifies the server is reachable, dialling if needed.
func (h *Handle) Ping(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return &ConnectError{Kind: Classify(err), Addr: h.addr, Err: err}
	}
	return nil
}

// Stats returns pool statistics.
func (h *Handle) Stats() sql.DBStats {
	return h.db.Stats()
}

// Bun returns a bun view over the same pool using the MySQL dialect.
func (h *Handle) Bun() *bun.DB {
	h.bunOnce.Do(func() {
		h.bunDB = bun.NewDB(h.db, mysqldialect.New())
		if h.queryLog {
			h.bunDB.AddQueryHook(bundebug.NewQueryHook(
				bundebug.WithVerbose(true),
				bundebug.FromEnv("BUNDEBUG"),
				bundebug.WithWriter(zap.NewStdLog(h.log.Named("query")).Writer()),
			))
		}
	})
	return h.bunDB
}

// Close releases the pool. Calling it more than once is safe.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.db.Close()
		h.log.Info("Database handle closed", zap.String("strategy", string(h.strategy)))
	})
	return h.closeErr
}

// Require applies the start-up policy to the result of Open. Errors other
// than *ConnectError are always returned. A *ConnectError is returned only
// when required is set, in which case the handle is closed first.
// Otherwise the handle is kept and queries fail until the server answers.
func Require(h *Handle, err error, required bool) (*Handle, error) {
	if err == nil {
		return h, nil
	}

	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		if h != nil {
			_ = h.Close()
		}
		return nil, err
	}
	if required {
		if h != nil {
			_ = h.Close()
		}
		return nil, err
	}
	return h, nil
}
