package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-org/backend/pkg/apperr"
)

// Querier is the statement surface shared by the pool, a pooled connection and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Runner scopes a logical operation to one storage session, optionally transactional.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sessionKey struct{}

type session struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

// DB hands out storage sessions from a shared pool. A session is bound to the context passed to
// Run/InTx; repositories pick it up through Q.
type DB struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	logger         *zap.Logger
}

// NewDB wraps pool. acquireTimeout bounds the wait for a free connection.
func NewDB(pool *pgxpool.Pool, acquireTimeout time.Duration, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 2 * time.Second
	}
	return &DB{pool: pool, acquireTimeout: acquireTimeout, logger: logger}
}

// Pool returns the underlying pool.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}

// Q returns the querier bound to ctx: the open transaction, else the acquired connection,
// else the pool itself.
func (db *DB) Q(ctx context.Context) Querier {
	if s := sessionFrom(ctx); s != nil {
		if s.tx != nil {
			return s.tx
		}
		return s.conn
	}
	return db.pool
}

func (db *DB) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, db.acquireTimeout)
	defer cancel()
	conn, err := db.pool.Acquire(actx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		db.logger.Warn("connection acquire failed", zap.Error(err), zap.Duration("timeout", db.acquireTimeout))
		return nil, apperr.Unavailable("database unavailable", err)
	}
	return conn, nil
}

// Run acquires a connection for the duration of fn and releases it on every exit path.
// A session already bound to ctx is reused.
func (db *DB) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if sessionFrom(ctx) != nil {
		return fn(ctx)
	}
	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(context.WithValue(ctx, sessionKey{}, &session{conn: conn}))
}

// InTx runs fn inside a transaction. Nested calls join the outer transaction; the outermost
// call commits, or rolls back when fn fails or ctx is cancelled.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s := sessionFrom(ctx)
	if s == nil {
		return db.Run(ctx, func(ctx context.Context) error {
			return db.InTx(ctx, fn)
		})
	}
	if s.tx != nil {
		return fn(ctx)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return apperr.Unavailable("begin transaction", err)
	}
	txCtx := context.WithValue(ctx, sessionKey{}, &session{conn: s.conn, tx: tx})
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			db.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Unavailable("commit transaction", err)
	}
	return nil
}
