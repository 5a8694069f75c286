package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/salescontrol/audiocore/internal/apperr"
	"github.com/salescontrol/audiocore/internal/logging"
	"github.com/shirou/gopsutil/v3/disk"
)

// WriteResult reports what was written, for the ingest handler to persist
// into the AudioChunk row.
type WriteResult struct {
	Size   int64
	SHA256 string
}

// WritePayload writes r to path, fsyncing before return so the file is
// durable before the caller commits the DB row. The parent directory is
// created if needed.
func WritePayload(path string, r io.Reader) (WriteResult, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WriteResult{}, apperr.New(err).Component("storage").Category(apperr.CategoryStorage).
			Context("directory", dir).Build()
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return WriteResult{}, apperr.New(err).Component("storage").Category(apperr.CategoryStorage).
			Context("path", tmp).Build()
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return WriteResult{}, apperr.New(err).Component("storage").Category(apperr.CategoryStorage).
			Context("path", tmp).Build()
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return WriteResult{}, apperr.New(err).Component("storage").Category(apperr.CategoryStorage).
			Context("operation", "fsync").Build()
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return WriteResult{}, apperr.New(err).Component("storage").Category(apperr.CategoryStorage).
			Context("operation", "close").Build()
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return WriteResult{}, apperr.New(err).Component("storage").Category(apperr.CategoryStorage).
			Context("path", path).Build()
	}

	return WriteResult{Size: size, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// ReadPayload opens a stored chunk file for reading, used by the worker
// pipeline and the internal byte-range fetch endpoint.
func ReadPayload(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.New(err).Component("storage").Category(apperr.CategoryStorage).
			Context("path", path).Build()
	}
	return f, nil
}

// CheckWritable probes baseDir for write access and reports a gopsutil
// free-space reading, feeding /health's storage_writable check.
func CheckWritable(baseDir string) (writable bool, freeBytes uint64) {
	probe := filepath.Join(baseDir, ".health_write_probe")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return false, 0
	}
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, 0
	}
	_ = f.Close()
	_ = os.Remove(probe)

	usage, err := disk.Usage(baseDir)
	if err != nil {
		logging.For("storage").Warn("disk usage check failed", "error", err)
		return true, 0
	}
	return true, usage.Free
}

// SweepOrphans deletes files under <baseDir>/audio older than maxAge with
// no matching row, as determined by hasRow.
// It never removes a file younger than maxAge, even if hasRow would say
// it's orphaned, to avoid racing an in-flight upload that hasn't
// committed its DB row yet.
func SweepOrphans(ctx context.Context, baseDir string, maxAge time.Duration, hasRow func(path string) bool) (removed int, err error) {
	root := filepath.Join(baseDir, "audio")
	cutoff := time.Now().Add(-maxAge)

	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort sweep; skip unreadable entries
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if hasRow(path) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return removed, apperr.New(walkErr).Component("storage").Category(apperr.CategoryStorage).
			Context("operation", "sweep_orphans").Build()
	}
	return removed, nil
}
