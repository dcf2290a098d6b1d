// File: internal/session/store.go
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store reads and writes a Session at a fixed path on disk.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a store rooted at path.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger.Named("session")}
}

// Path returns the file the store persists to.
func (s *Store) Path() string { return s.path }

// Load reads the persisted session. A missing, unreadable, or corrupt file is
// not an error: it simply means there is no usable session, and the caller
// falls through to a fresh login.
func (s *Store) Load() *Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Session file unreadable; starting without one.",
				zap.String("path", s.path), zap.Error(err))
		}
		return &Session{}
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("Session file corrupt; starting without one.",
			zap.String("path", s.path), zap.Error(err))
		return &Session{}
	}

	s.logger.Debug("Loaded persisted session.",
		zap.Int("cookies", len(sess.Cookies)),
		zap.Time("saved_at", sess.SavedAt))
	return &sess
}

// Save persists the session with owner-only permissions, since the cookies
// grant account access.
func (s *Store) Save(sess *Session) error {
	if sess.SavedAt.IsZero() {
		sess.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating session directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	s.logger.Info("Session persisted.",
		zap.String("path", s.path), zap.Int("cookies", len(sess.Cookies)))
	return nil
}

// Clear removes the persisted session, if any.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
