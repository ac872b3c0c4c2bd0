package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const ImportLedgerVersion = 1

// ImportLedgerEntry records one transcript already submitted by a bulk
// import, so repeated runs never double-submit.
type ImportLedgerEntry struct {
	SessionID  string    `json:"sessionId"`
	Path       string    `json:"path"`
	ImportedAt time.Time `json:"importedAt"`
}

type ImportLedger struct {
	Version int                 `json:"version"`
	Entries []ImportLedgerEntry `json:"entries"`
}

func (l ImportLedger) IsImported(sessionID string) bool {
	for _, entry := range l.Entries {
		if entry.SessionID == sessionID {
			return true
		}
	}
	return false
}

// HasPath covers transcripts whose session id cannot be recovered cheaply
// (compressed archives) but were imported from the same location before.
func (l ImportLedger) HasPath(path string) bool {
	for _, entry := range l.Entries {
		if entry.Path == path {
			return true
		}
	}
	return false
}

func (l *ImportLedger) Upsert(entry ImportLedgerEntry) {
	for i := range l.Entries {
		if l.Entries[i].SessionID == entry.SessionID {
			l.Entries[i] = entry
			return
		}
	}
	l.Entries = append(l.Entries, entry)
}

// ImportLedgerStore persists the ledger beside the config file with the
// same locking discipline: a mutex for goroutines, a flock for processes.
type ImportLedgerStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

func ImportLedgerPath(configPathOverride string) (string, error) {
	path := configPathOverride
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	return filepath.Join(filepath.Dir(path), "import_ledger.json"), nil
}

func NewImportLedgerStore(configPathOverride string) (*ImportLedgerStore, error) {
	path, err := ImportLedgerPath(configPathOverride)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &ImportLedgerStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *ImportLedgerStore) Load() (ImportLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return ImportLedger{}, fmt.Errorf("lock import ledger: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return s.loadUnlocked()
}

func (s *ImportLedgerStore) Update(fn func(*ImportLedger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock import ledger: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	ledger, err := s.loadUnlocked()
	if err != nil {
		return err
	}
	if err := fn(&ledger); err != nil {
		return err
	}
	return s.saveUnlocked(ledger)
}

func (s *ImportLedgerStore) loadUnlocked() (ImportLedger, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ImportLedger{Version: ImportLedgerVersion}, nil
		}
		return ImportLedger{}, fmt.Errorf("read import ledger: %w", err)
	}

	var ledger ImportLedger
	if err := json.Unmarshal(b, &ledger); err != nil {
		return ImportLedger{}, fmt.Errorf("parse import ledger: %w", err)
	}
	if ledger.Version == 0 {
		ledger.Version = ImportLedgerVersion
	}
	if ledger.Version != ImportLedgerVersion {
		return ImportLedger{}, fmt.Errorf("unsupported import ledger version %d (expected %d)", ledger.Version, ImportLedgerVersion)
	}
	return ledger, nil
}

func (s *ImportLedgerStore) saveUnlocked(ledger ImportLedger) error {
	if ledger.Version == 0 {
		ledger.Version = ImportLedgerVersion
	}
	if ledger.Version != ImportLedgerVersion {
		return fmt.Errorf("refuse to write import ledger version %d (expected %d)", ledger.Version, ImportLedgerVersion)
	}

	b, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal import ledger: %w", err)
	}
	b = append(b, '\n')

	if err := atomicWriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("atomic write import ledger: %w", err)
	}
	return nil
}
