package storage

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
)

type compensationKey struct{}

// Compensation is the per-request holder for filesystem side effects
// that depend on the outcome of the surrounding database transaction:
// at most one path to delete on rollback (a freshly stored file) and at
// most one path to delete on commit (a superseded file). A second set
// call overwrites the previous slot.
type Compensation struct {
	mu              sync.Mutex
	pendingRollback string
	pendingCleanup  string
	hooked          bool
}

// WithCompensation installs a fresh holder on the context. Each inbound
// operation gets its own; holders are never shared across requests.
func WithCompensation(ctx context.Context) (context.Context, *Compensation) {
	comp := &Compensation{}
	return context.WithValue(ctx, compensationKey{}, comp), comp
}

// CompensationFrom returns the holder bound to ctx, if any.
func CompensationFrom(ctx context.Context) (*Compensation, bool) {
	comp, ok := ctx.Value(compensationKey{}).(*Compensation)
	return comp, ok && comp != nil
}

// SetForRollback records a path to unlink if the transaction fails.
func (c *Compensation) SetForRollback(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingRollback = path
}

// SetForCleanup records a path to unlink once the transaction commits.
func (c *Compensation) SetForCleanup(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingCleanup = path
}

// PendingRollback returns the rollback slot.
func (c *Compensation) PendingRollback() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingRollback
}

// PendingCleanup returns the cleanup slot.
func (c *Compensation) PendingCleanup() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingCleanup
}

// markHooked flips the hooked flag, reporting whether the caller is the
// first to do so. The completion hook is registered at most once per
// holder even when several store/delete calls share a request.
func (c *Compensation) markHooked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hooked {
		return false
	}
	c.hooked = true
	return true
}

// Resolve performs the filesystem action matching the transaction
// outcome: rollback deletes the freshly stored file, commit deletes the
// superseded one. Delete failures are logged and swallowed; the primary
// outcome has already been decided. Both slots are cleared regardless.
func (c *Compensation) Resolve(committed bool, logger *zap.Logger) {
	c.mu.Lock()
	rollback := c.pendingRollback
	cleanup := c.pendingCleanup
	c.pendingRollback = ""
	c.pendingCleanup = ""
	c.mu.Unlock()

	var target string
	if committed {
		target = cleanup
	} else {
		target = rollback
	}
	if target == "" {
		return
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		if logger != nil {
			logger.Error("failed to remove compensated file",
				zap.String("path", target),
				zap.Bool("committed", committed),
				zap.Error(err))
		}
		return
	}
	if logger != nil {
		logger.Debug("compensated file removed",
			zap.String("path", target),
			zap.Bool("committed", committed))
	}
}
