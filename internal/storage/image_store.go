package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/tastyhub-service/internal/config"
	"github.com/spec-kit/tastyhub-service/internal/persistence"
	apperrors "github.com/spec-kit/tastyhub-service/pkg/util"
)

// ImageStore persists uploaded images on local disk and coordinates
// deletes with the outcome of the ambient database transaction through
// the request's Compensation holder.
type ImageStore struct {
	dir    string
	logger *zap.Logger
}

// NewImageStore ensures the upload directory exists.
func NewImageStore(cfg config.UploadConfig, logger *zap.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{dir: cfg.Dir, logger: logger}, nil
}

// Store writes the blob under a collision-free generated name, keeping
// the original extension, and schedules the new file for deletion
// should the surrounding transaction roll back. The returned reference
// is the bare file name.
func (s *ImageStore) Store(ctx context.Context, originalName string, r io.Reader) (string, error) {
	name := uuid.NewString() + "_" + strconv.FormatInt(time.Now().UnixNano(), 10) + filepath.Ext(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.NewInfrastructureError("could not store image", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", apperrors.NewInfrastructureError("could not store image", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", apperrors.NewInfrastructureError("could not store image", err)
	}

	if comp, ok := CompensationFrom(ctx); ok {
		comp.SetForRollback(path)
		s.registerResolver(ctx, comp)
	}
	return name, nil
}

// Delete schedules the referenced file for removal after the ambient
// transaction commits. The physical unlink is deferred so a rollback
// never loses a file the pre-transaction state still points at.
func (s *ImageStore) Delete(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	path := s.Path(ref)
	if _, err := os.Stat(path); err != nil {
		return
	}
	if comp, ok := CompensationFrom(ctx); ok {
		comp.SetForCleanup(path)
		s.registerResolver(ctx, comp)
	}
}

// Dir returns the upload directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Path resolves a stored reference to its absolute location. The
// reference is reduced to its base name so callers cannot escape the
// upload directory.
func (s *ImageStore) Path(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}

func (s *ImageStore) registerResolver(ctx context.Context, comp *Compensation) {
	if !comp.markHooked() {
		return
	}
	registered := persistence.AfterCompletion(ctx, func(committed bool) {
		comp.Resolve(committed, s.logger)
	})
	if !registered && s.logger != nil {
		s.logger.Warn("image stored outside a transaction; compensation will not run")
	}
}
