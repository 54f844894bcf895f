package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PettyMiggzy/ChopstixBNB/internal/models"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Store owns the single state document: an in-memory map of records,
// rewritten to disk in full after every mutation. There is no external
// writer; the file is only ever touched by this process.
type Store struct {
	path string
	log  *zap.Logger

	mu  sync.RWMutex
	doc *models.Document

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex
}

// Open loads the document at path, or starts from an empty one when the file
// does not exist yet. A file that exists but cannot be parsed is a fatal
// startup error rather than something to silently overwrite.
func Open(path string, log *zap.Logger) (*Store, error) {
	s := &Store{
		path:  path,
		log:   log,
		doc:   models.NewDocument(),
		locks: make(map[int64]*sync.Mutex),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no state file found, starting fresh", zap.String("path", path))
			return s, nil
		}
		return nil, errors.Wrapf(err, "failed to read state file %s", path)
	}

	if err := json.Unmarshal(data, s.doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse state file %s", path)
	}
	s.doc.Normalize()
	log.Info("state loaded",
		zap.String("path", path),
		zap.Int("users", len(s.doc.Users)))
	return s, nil
}

// View runs fn with read access to the document. fn must not retain or
// mutate anything it is handed.
func (s *Store) View(fn func(doc *models.Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// Update runs fn with write access and persists the document afterwards.
// A persistence failure is returned (and should be logged by the caller):
// the in-memory state stays authoritative until the next successful write.
func (s *Store) Update(fn func(doc *models.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
	return s.persistLocked()
}

// LockUser serializes multi-step transitions for a single user id, so that
// interleaved messages from the same user cannot double-claim or
// double-attribute. The returned func releases the lock.
func (s *Store) LockUser(id int64) func() {
	s.lockMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.lockMu.Unlock()

	l.Lock()
	return l.Unlock
}

// Touch records that the user was seen: lazy record creation, last-write-wins
// display name, last-seen timestamp.
func (s *Store) Touch(id int64, displayName string, now time.Time) {
	if err := s.Update(func(doc *models.Document) {
		u := doc.EnsureUser(id, now)
		if displayName != "" {
			u.DisplayName = displayName
		}
		u.LastSeenAt = now
	}); err != nil {
		s.log.Error("failed to persist user touch", zap.Int64("user_id", id), zap.Error(err))
	}
}

// GetUser returns a copy of the record for id.
func (s *Store) GetUser(id int64) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.doc.Users[id]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// Users returns a snapshot copy of all user records.
func (s *Store) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.doc.Users))
	for _, u := range s.doc.Users {
		out = append(out, *u)
	}
	return out
}

// Settings returns the current runtime configuration scalars.
func (s *Store) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Config
}

// Flush forces a write of the current document, used on shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// persistLocked writes the whole document to a temp file in the same
// directory and renames it into place, so a crash mid-write leaves the
// previous file intact. Caller must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp state file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write temp state file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close temp state file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to replace state file")
	}
	return nil
}
