package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"

	"github.com/mrbobgradebook/easygrade/internal/book"
	"github.com/mrbobgradebook/easygrade/internal/model"
	"github.com/mrbobgradebook/easygrade/internal/store"
)

// Session is one signed-in user's live gradebook: the owned state plus the
// persistence loop that shadows it.
type Session struct {
	Book   *book.Book
	syncer *Syncer
	cancel context.CancelFunc
}

// Status returns the session's save-indicator state.
func (s *Session) Status() Status {
	return s.syncer.Status()
}

// Manager owns the per-user sessions. A session is created and hydrated from
// the document store on first use and torn down on sign-out.
type Manager struct {
	store DocumentStore
	cfg   model.Config

	mu       stdsync.Mutex
	sessions map[string]*Session
}

func NewManager(st DocumentStore, cfg model.Config) *Manager {
	return &Manager{
		store:    st,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the live session for a user, loading their document (or an
// empty default) and starting the sync loop on first use.
func (m *Manager) Acquire(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess, nil
	}

	var ds model.Dataset
	payload, err := m.store.LoadDocument(userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		ds = model.Default()
		if m.cfg.DefaultSummative > 0 {
			ds.Weights.SetSummative(m.cfg.DefaultSummative)
		}
	case err != nil:
		return nil, fmt.Errorf("load document: %w", err)
	default:
		if err := json.Unmarshal(payload, &ds); err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
	}

	bk := book.New(ds, m.cfg.Subjects, m.cfg.MaxStudents)

	// Seed the agreement point from what was actually loaded, so an
	// untouched book never rewrites the document. A first sign-in has no
	// agreement point and persists its default after the debounce.
	var lastSaved []byte
	if payload != nil {
		canon, err := bk.Snapshot().Canonical()
		if err != nil {
			return nil, fmt.Errorf("serialize document: %w", err)
		}
		lastSaved = canon
	}

	sy := New(m.store, bk, userID, m.cfg.SaveDebounce, lastSaved)
	ctx, cancel := context.WithCancel(context.Background())
	go sy.Run(ctx)

	sess := &Session{Book: bk, syncer: sy, cancel: cancel}
	m.sessions[userID] = sess
	slog.Info("opened gradebook session", "user", userID)
	return sess, nil
}

// Release tears down a user's session on sign-out: the snapshot subscription
// and any pending save timer are cancelled and in-memory state is dropped.
// Unflushed edits are discarded; last write wins.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.cancel()
	slog.Info("closed gradebook session", "user", userID)
}

// Close releases every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.cancel()
	}
}
