package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/salescontrol/audiocore/internal/apperr"
)

// inProcessLocks backs the per-device advisory lock for SQLite, where a
// single file-level writer lock already serializes cross-process access;
// an in-process mutex is sufficient there and avoids inventing a locking
// protocol SQLite has no primitive for.
var (
	inProcessLocksMu sync.Mutex
	inProcessLocks   = map[string]*sync.Mutex{}
)

func inProcessLockFor(deviceID string) *sync.Mutex {
	inProcessLocksMu.Lock()
	defer inProcessLocksMu.Unlock()
	m, ok := inProcessLocks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		inProcessLocks[deviceID] = m
	}
	return m
}

// WithDeviceLock runs fn while holding the per-device advisory lock that
// serializes dialogue commits: a worker processing several chunks for one
// device sorts them by start_ts before committing, and the lock keeps any
// other worker out of the critical section meanwhile.
func (s *gormStore) WithDeviceLock(ctx context.Context, deviceID string, fn func() error) error {
	if s.dialect == DialectMySQL {
		return s.withMySQLAdvisoryLock(ctx, deviceID, fn)
	}
	m := inProcessLockFor(deviceID)
	m.Lock()
	defer m.Unlock()
	return fn()
}

func (s *gormStore) withMySQLAdvisoryLock(ctx context.Context, deviceID string, fn func() error) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).Build()
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).Build()
	}
	defer conn.Close()

	lockName := advisoryLockName(deviceID)
	var got int
	row := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 30)", lockName)
	if err := row.Scan(&got); err != nil {
		return apperr.New(err).Component("datastore").Category(apperr.CategoryDatabase).
			Context("operation", "get_lock").Context("device_id", deviceID).Build()
	}
	if got != 1 {
		return apperr.Newf("timed out acquiring device lock").Component("datastore").
			Category(apperr.CategoryDatabase).Context("device_id", deviceID).Build()
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT RELEASE_LOCK(?)", lockName)
	}()

	return fn()
}

// advisoryLockName derives a bounded-length MySQL lock name (64-char
// limit) that is stable per device_id without leaking the raw UUID format
// into lock-table diagnostics.
func advisoryLockName(deviceID string) string {
	sum := sha256.Sum256([]byte(deviceID))
	return "audiocore_device_" + hex64(binary.BigEndian.Uint64(sum[:8]))
}

func hex64(v uint64) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hextable[v&0xf]
		v >>= 4
	}
	return string(buf)
}
