package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Querier is the subset of pgx operations repositories run. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so a repository transparently
// joins the ambient transaction when one is active.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type hooksKey struct{}

// QuerierFrom returns the transaction bound to ctx, or the pool when no
// transaction is active.
func QuerierFrom(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// CompletionHooks collects deferred actions to run once the enclosing
// transaction has decided its outcome.
type CompletionHooks struct {
	mu    sync.Mutex
	fns   []func(committed bool)
	fired bool
}

// WithCompletionHooks installs a fresh hook list on the context.
func WithCompletionHooks(ctx context.Context) (context.Context, *CompletionHooks) {
	hooks := &CompletionHooks{}
	return context.WithValue(ctx, hooksKey{}, hooks), hooks
}

// AfterCompletion registers fn to run after the ambient transaction
// commits or rolls back. It reports false when no transaction hook list
// is present, in which case fn will never run.
func AfterCompletion(ctx context.Context, fn func(committed bool)) bool {
	hooks, ok := ctx.Value(hooksKey{}).(*CompletionHooks)
	if !ok || hooks == nil {
		return false
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if hooks.fired {
		return false
	}
	hooks.fns = append(hooks.fns, fn)
	return true
}

// Fire runs the registered hooks in registration order, exactly once.
// A panicking hook never propagates: the primary outcome has already
// been decided and must not be overturned by cleanup.
func (h *CompletionHooks) Fire(committed bool, logger *zap.Logger) {
	h.mu.Lock()
	if h.fired {
		h.mu.Unlock()
		return
	}
	h.fired = true
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()

	for _, fn := range fns {
		runHook(fn, committed, logger)
	}
}

func runHook(fn func(bool), committed bool, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("transaction completion hook panicked", zap.Any("panic", r))
		}
	}()
	fn(committed)
}

// TxManager runs a function inside a single database transaction and
// fires completion hooks strictly after the commit/rollback decision.
type TxManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTxManager builds a manager over the given pool.
func NewTxManager(pool *pgxpool.Pool, logger *zap.Logger) *TxManager {
	return &TxManager{pool: pool, logger: logger}
}

// WithinTransaction begins a transaction, binds it to the context and
// invokes fn. A nil error commits, anything else rolls back. Completion
// hooks registered during fn observe the final outcome.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.pool == nil {
		return errors.New("postgres pool not configured")
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	txCtx, hooks := WithCompletionHooks(txCtx)

	committed := false
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			hooks.Fire(false, m.logger)
			panic(r)
		}
		hooks.Fire(committed, m.logger)
	}()

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	committed = true
	return nil
}
