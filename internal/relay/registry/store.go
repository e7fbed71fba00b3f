package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/ip"
	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/logger"
)

// FileStore persists device records in a single JSON snapshot file. The file
// is the source of truth: every operation reads it fresh, and mutations hold
// both a process-wide write lock and an exclusive advisory lock on a sidecar
// lock file so cooperating processes cannot interleave allocations.
//
// The advisory lock lives on a sidecar file rather than the snapshot itself
// because the atomic rename in persist replaces the snapshot's inode, which
// would silently drop a lock held on it.
type FileStore struct {
	path      string
	allocator *ip.Allocator
	logger    *logger.Logger

	mu       sync.RWMutex
	lockFile *os.File
	closed   bool

	// Swapped out by tests to simulate a crash between temp write and rename
	writeFile func(filename string, data []byte, perm os.FileMode) error
}

// NewFileStore opens (or creates) the snapshot at path and its sidecar lock
// file. The parent directory is created if missing. An empty snapshot is
// written immediately so startup fails early on an unwritable path.
func NewFileStore(path string, allocator *ip.Allocator, log *logger.Logger) (*FileStore, error) {
	if path == "" {
		return nil, apperrors.DomainErrInvalidConfig.WithMetadata("field", "registry.path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storeFailure("init", path, err)
	}

	lockFile, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, storeFailure("lock", path, err)
	}

	s := &FileStore{
		path:      path,
		allocator: allocator,
		logger:    log.WithComponent("registry"),
		lockFile:  lockFile,
		writeFile: atomicWriteFile,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.persist(newSnapshot()); err != nil {
			lockFile.Close()
			return nil, err
		}
	} else if _, err := s.load(); err != nil {
		lockFile.Close()
		return nil, err
	}

	s.logger.Info("registry store opened", "path", path, "capacity", allocator.Capacity())
	return s, nil
}

// Insert allocates an address for a new device and persists the record. It
// fails when the serial or public key is already registered, or when the
// pool has no free address left. No partial state survives a failure.
func (s *FileStore) Insert(ctx context.Context, serial, publicKey string) (*Device, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperrors.ErrStoreClosed
	}
	if err := s.flock(); err != nil {
		return nil, err
	}
	defer s.funlock()

	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	if snap.find(serial) >= 0 {
		return nil, apperrors.DomainErrDeviceExists.WithMetadata("serial", serial)
	}
	if snap.findKey(publicKey) >= 0 {
		return nil, apperrors.DomainErrKeyInUse.WithMetadata("serial", serial)
	}

	address, err := s.allocator.Allocate(snap.leased())
	if err != nil {
		return nil, err
	}

	device := Device{
		Serial:       serial,
		PublicKey:    publicKey,
		Address:      address,
		RegisteredAt: time.Now().UTC(),
	}
	snap.Devices = append(snap.Devices, device)

	if err := s.persist(snap); err != nil {
		return nil, err
	}

	s.logger.StoreOp(ctx, "insert", s.path, time.Since(start))
	return &device, nil
}

// Get returns the record for serial, reading the snapshot fresh from disk
func (s *FileStore) Get(ctx context.Context, serial string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, apperrors.ErrStoreClosed
	}

	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	i := snap.find(serial)
	if i < 0 {
		return nil, apperrors.DomainErrDeviceNotFound.WithMetadata("serial", serial)
	}

	device := snap.Devices[i]
	return &device, nil
}

// List returns all records in insertion order
func (s *FileStore) List(ctx context.Context) ([]*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, apperrors.ErrStoreClosed
	}

	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	devices := make([]*Device, len(snap.Devices))
	for i := range snap.Devices {
		d := snap.Devices[i]
		devices[i] = &d
	}
	return devices, nil
}

// Remove deletes the record for serial and persists the shrunk snapshot. The
// removed record is returned so the caller still knows its address and key.
func (s *FileStore) Remove(ctx context.Context, serial string) (*Device, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperrors.ErrStoreClosed
	}
	if err := s.flock(); err != nil {
		return nil, err
	}
	defer s.funlock()

	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	i := snap.find(serial)
	if i < 0 {
		return nil, apperrors.DomainErrDeviceNotFound.WithMetadata("serial", serial)
	}

	device := snap.Devices[i]
	snap.Devices = append(snap.Devices[:i], snap.Devices[i+1:]...)

	if err := s.persist(snap); err != nil {
		return nil, err
	}

	s.logger.StoreOp(ctx, "remove", s.path, time.Since(start))
	return &device, nil
}

// RollbackInsert undoes a just-persisted Insert after a downstream failure.
// A missing serial is not an error: the record being gone is the goal state.
func (s *FileStore) RollbackInsert(ctx context.Context, serial string) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.ErrStoreClosed
	}
	if err := s.flock(); err != nil {
		return err
	}
	defer s.funlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	i := snap.find(serial)
	if i < 0 {
		return nil
	}

	snap.Devices = append(snap.Devices[:i], snap.Devices[i+1:]...)
	if err := s.persist(snap); err != nil {
		return err
	}

	s.logger.StoreOp(ctx, "rollback_insert", s.path, time.Since(start))
	return nil
}

// Count returns the number of registered devices
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, apperrors.ErrStoreClosed
	}

	snap, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(snap.Devices), nil
}

// Capacity returns how many devices the address pool can hold in total
func (s *FileStore) Capacity() int {
	return s.allocator.Capacity()
}

// Path returns the snapshot file location
func (s *FileStore) Path() string {
	return s.path
}

// Close releases the sidecar lock file. Further operations fail with
// ErrStoreClosed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.lockFile.Close(); err != nil {
		return storeFailure("close", s.path, err)
	}
	s.logger.Info("registry store closed", "path", s.path)
	return nil
}

// flock takes the exclusive advisory lock, blocking until any other process
// releases it. Callers must already hold s.mu.
func (s *FileStore) flock() error {
	if err := unix.Flock(int(s.lockFile.Fd()), unix.LOCK_EX); err != nil {
		return storeFailure("lock", s.path, err)
	}
	return nil
}

func (s *FileStore) funlock() {
	if err := unix.Flock(int(s.lockFile.Fd()), unix.LOCK_UN); err != nil {
		s.logger.Warn("failed to release registry file lock", "path", s.path, "error", err)
	}
}

// load reads and decodes the snapshot. A missing file decodes as empty so a
// concurrent process that has not written yet is indistinguishable from a
// fresh install.
func (s *FileStore) load() (*snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshot(), nil
		}
		return nil, storeFailure("load", s.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, storeFailure("load", s.path, err)
	}
	if snap.Version > snapshotVersion {
		return nil, storeFailure("load", s.path, fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, snapshotVersion))
	}
	if snap.Devices == nil {
		snap.Devices = []Device{}
	}
	return &snap, nil
}

// persist writes the full snapshot through the atomic temp-then-rename path
func (s *FileStore) persist(snap *snapshot) error {
	snap.Version = snapshotVersion
	snap.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return storeFailure("persist", s.path, err)
	}
	data = append(data, '\n')

	if err := s.writeFile(s.path, data, 0o600); err != nil {
		return storeFailure("persist", s.path, err)
	}
	return nil
}

func storeFailure(op, path string, err error) error {
	return apperrors.WrapWithDomain(apperrors.NewStoreError(op, path, err), apperrors.DomainRegistry, apperrors.ErrCodeStorage, "registry snapshot "+op+" failed", false)
}
