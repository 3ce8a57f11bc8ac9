package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))
	return path
}

func TestCompensationFromMissing(t *testing.T) {
	_, ok := CompensationFrom(context.Background())
	assert.False(t, ok)
}

func TestCompensationResolveRollbackDeletesNewFile(t *testing.T) {
	newFile := writeTempFile(t, "new.png")
	oldFile := writeTempFile(t, "old.png")

	comp := &Compensation{}
	comp.SetForRollback(newFile)
	comp.SetForCleanup(oldFile)

	comp.Resolve(false, nil)

	assert.NoFileExists(t, newFile, "rollback must delete the freshly stored file")
	assert.FileExists(t, oldFile, "rollback must keep the superseded file")
}

func TestCompensationResolveCommitDeletesOldFile(t *testing.T) {
	newFile := writeTempFile(t, "new.png")
	oldFile := writeTempFile(t, "old.png")

	comp := &Compensation{}
	comp.SetForRollback(newFile)
	comp.SetForCleanup(oldFile)

	comp.Resolve(true, nil)

	assert.FileExists(t, newFile, "commit must keep the freshly stored file")
	assert.NoFileExists(t, oldFile, "commit must delete the superseded file")
}

func TestCompensationResolveClearsSlots(t *testing.T) {
	comp := &Compensation{}
	comp.SetForRollback(writeTempFile(t, "a.png"))
	comp.SetForCleanup(writeTempFile(t, "b.png"))

	comp.Resolve(true, nil)

	assert.Empty(t, comp.PendingRollback())
	assert.Empty(t, comp.PendingCleanup())
}

func TestCompensationResolveWithEmptySlots(t *testing.T) {
	comp := &Compensation{}
	assert.NotPanics(t, func() {
		comp.Resolve(true, nil)
		comp.Resolve(false, nil)
	})
}

func TestCompensationResolveMissingFileIsIgnored(t *testing.T) {
	comp := &Compensation{}
	comp.SetForRollback(filepath.Join(t.TempDir(), "never-written.png"))
	assert.NotPanics(t, func() { comp.Resolve(false, nil) })
}

func TestCompensationOverwritesSlot(t *testing.T) {
	first := writeTempFile(t, "first.png")
	second := writeTempFile(t, "second.png")

	comp := &Compensation{}
	comp.SetForRollback(first)
	comp.SetForRollback(second)

	comp.Resolve(false, nil)

	assert.FileExists(t, first, "overwritten slot must not be acted on")
	assert.NoFileExists(t, second)
}

func TestCompensationMarkHooked(t *testing.T) {
	comp := &Compensation{}
	assert.True(t, comp.markHooked())
	assert.False(t, comp.markHooked())
}
