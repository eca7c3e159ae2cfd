package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"

	"github.com/kraabmod/profiles-service/internal/config"
	"github.com/kraabmod/profiles-service/internal/logging"
	"github.com/kraabmod/profiles-service/internal/metrics"
)

const (
	defaultReconnectDelay = 5 * time.Second
	pingTimeout           = 5 * time.Second
)

// State is the reconnect state of a Manager.
type State int32

const (
	StateIdle State = iota
	StateReconnecting
)

func (s State) String() string {
	if s == StateReconnecting {
		return "reconnecting"
	}
	return "idle"
}

// Opener builds a new pool from configuration.
type Opener func(cfg config.PostgresConfig) (*sql.DB, error)

// OpenPostgres opens a lib/pq pool and applies the pool limits from cfg.
// It does not dial; the first statement or Ping does.
func OpenPostgres(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// Option customizes a Manager.
type Option func(*Manager)

// WithOpener replaces the pool constructor.
func WithOpener(open Opener) Option {
	return func(m *Manager) { m.open = open }
}

// WithReconnectDelay overrides the wait before a pool is recreated.
func WithReconnectDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// WithPingInterval sets how often Serve pings the pool; zero disables pinging.
func WithPingInterval(d time.Duration) Option {
	return func(m *Manager) { m.pingInterval = d }
}

// Manager owns the connection pool. Statements never panic or leak raw driver
// errors: failures come back as *ExecError after being logged and counted.
//
// Server-side pool errors (SQLSTATE class 5x) schedule one pool recreation.
// The recreation itself runs in Serve, so Serve must be running (normally
// under the supervisor) for reconnects to happen.
type Manager struct {
	runner

	cfg          config.PostgresConfig
	open         Opener
	delay        time.Duration
	pingInterval time.Duration
	log          zerolog.Logger

	pool       atomic.Pointer[sql.DB]
	state      atomic.Int32
	reconnects atomic.Uint64
	closed     atomic.Bool

	// swapMu serializes pool replacement against End.
	swapMu  sync.Mutex
	trigger chan error
}

// NewManager validates cfg and opens the initial pool.
func NewManager(cfg config.PostgresConfig, opts ...Option) (*Manager, error) {
	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	m := &Manager{
		cfg:          cfg,
		open:         OpenPostgres,
		delay:        cfg.ReconnectDelay,
		pingInterval: cfg.PingInterval,
		log:          logging.With().Str("component", "postgres").Logger(),
		trigger:      make(chan error, 1),
	}
	if m.delay <= 0 {
		m.delay = defaultReconnectDelay
	}
	for _, opt := range opts {
		opt(m)
	}

	db, err := m.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: open pool: %w", err)
	}
	m.pool.Store(db)
	m.runner = runner{q: poolQueryer{m}, onError: func(err error) { m.HandlePoolError(err) }}
	return m, nil
}

// poolQueryer resolves the current pool on every call so statements issued
// after a swap use the new pool.
type poolQueryer struct{ m *Manager }

func (p poolQueryer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db, err := p.m.current()
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, query, args...)
}

func (p poolQueryer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, err := p.m.current()
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, query, args...)
}

func (m *Manager) current() (*sql.DB, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	db := m.pool.Load()
	if db == nil {
		return nil, ErrClosed
	}
	return db, nil
}

// State reports whether a reconnect is pending.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Reconnects is the number of successful pool recreations.
func (m *Manager) Reconnects() uint64 {
	return m.reconnects.Load()
}

// Ping checks the current pool.
func (m *Manager) Ping(ctx context.Context) error {
	db, err := m.current()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// ExecScript runs a multi-statement script such as the bootstrap schema.
func (m *Manager) ExecScript(ctx context.Context, script string) error {
	db, err := m.current()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, script); err != nil {
		return &ExecError{Op: "script", Err: err}
	}
	return nil
}

// WithTx runs fn in a transaction. Any error or panic from fn rolls back every
// statement fn issued; otherwise the transaction commits once.
func (m *Manager) WithTx(ctx context.Context, fn func(Executor) error) error {
	if fn == nil {
		return errNilTxFunc
	}
	db, err := m.current()
	if err != nil {
		return &ExecError{Op: "begin", Err: err}
	}
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		m.HandlePoolError(err)
		return &ExecError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{runner{q: sqlTx, onError: func(err error) { m.HandlePoolError(err) }}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			logging.Ctx(ctx).Error().Err(rbErr).Msg("Transaction rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &ExecError{Op: "commit", Err: err}
	}
	return nil
}

// HandlePoolError is the pool error listener. It logs err and, when err carries
// a fatal-class SQLSTATE, schedules a pool recreation. It returns true only for
// the call that actually scheduled one; while a reconnect is pending further
// fatal errors are absorbed.
func (m *Manager) HandlePoolError(err error) bool {
	if err == nil || !IsFatalClass(err) {
		return false
	}
	m.log.Error().Err(err).Msg("PostgreSQL error")

	if m.closed.Load() {
		return false
	}
	if !m.state.CompareAndSwap(int32(StateIdle), int32(StateReconnecting)) {
		m.log.Debug().Msg("Reconnect already pending")
		return false
	}
	metrics.DBPoolState.Set(1)

	select {
	case m.trigger <- err:
	default:
	}
	return true
}

// Serve implements suture.Service: it pings the pool on an interval and
// performs scheduled reconnects until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context) error {
	var tick <-chan time.Time
	if m.pingInterval > 0 {
		ticker := time.NewTicker(m.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			m.ping(ctx)
		case cause := <-m.trigger:
			m.reconnect(ctx, cause)
		}
	}
}

func (m *Manager) String() string {
	return "postgres-manager"
}

func (m *Manager) ping(ctx context.Context) {
	db, err := m.current()
	if err != nil {
		return
	}
	metrics.DBOpenConnections.Set(float64(db.Stats().OpenConnections))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		m.log.Warn().Err(err).Msg("PostgreSQL ping failed")
		m.HandlePoolError(err)
	}
}

func (m *Manager) reconnect(ctx context.Context, cause error) {
	defer func() {
		m.state.Store(int32(StateIdle))
		metrics.DBPoolState.Set(0)
	}()

	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	m.log.Warn().Err(cause).Dur("delay", m.delay).Msg("Reconnecting to PostgreSQL...")
	db, err := m.open(m.cfg)
	if err != nil {
		metrics.DBReconnects.WithLabelValues("failure").Inc()
		m.log.Error().Err(err).Msg("PostgreSQL reconnect failed, keeping current pool")
		return
	}

	m.swapMu.Lock()
	defer m.swapMu.Unlock()
	if m.closed.Load() {
		_ = db.Close()
		return
	}
	old := m.pool.Swap(db)
	m.reconnects.Add(1)
	metrics.DBReconnects.WithLabelValues("success").Inc()
	m.log.Info().Uint64("reconnects", m.reconnects.Load()).Msg("PostgreSQL pool recreated")

	if old != nil {
		if err := old.Close(); err != nil {
			m.log.Warn().Err(err).Msg("Error closing previous PostgreSQL pool")
		}
	}
}

// End closes the current pool. Calls after the first are no-ops.
func (m *Manager) End() error {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()
	if m.closed.Swap(true) {
		return nil
	}
	db := m.pool.Load()
	if db == nil {
		return nil
	}
	m.log.Info().Msg("PostgreSQL disconnected")
	return db.Close()
}
