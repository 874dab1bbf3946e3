// Package state holds the handles shared by every request: the database
// pool and the token signer.
package state

import (
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/server/auth"
)

// Handles is a snapshot of the shared handles taken under the read lock.
// Callers use it for the rest of the request without touching the lock.
type Handles struct {
	DB     *sql.DB
	Signer *auth.Signer
}

// ServerState guards the shared handles. The lock is only held while
// copying or swapping pointers, never across I/O.
type ServerState struct {
	mu     sync.RWMutex
	db     *sql.DB
	signer *auth.Signer
	closed bool
}

func New(db *sql.DB, signer *auth.Signer) *ServerState {
	return &ServerState{db: db, signer: signer}
}

// Acquire returns the current handles, or common.ErrStateClosed once the
// state has been closed.
func (s *ServerState) Acquire() (Handles, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Handles{}, common.ErrStateClosed
	}
	return Handles{DB: s.db, Signer: s.signer}, nil
}

// ReplaceSigner swaps the signer for subsequent requests. Requests that
// already acquired handles keep the old one.
func (s *ServerState) ReplaceSigner(signer *auth.Signer) {
	s.mu.Lock()
	s.signer = signer
	s.mu.Unlock()
}

// Close marks the state closed and closes the database pool. It is safe to
// call more than once.
func (s *ServerState) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	db := s.db
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close()
}
