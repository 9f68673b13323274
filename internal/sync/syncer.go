// Package sync keeps a user's in-memory gradebook and their stored document
// in agreement: local edits flush after a debounce delay, incoming snapshots
// fold back into local state, and byte-identical payloads are dropped in both
// directions so a write's own echo never loops.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/mrbobgradebook/easygrade/internal/book"
	"github.com/mrbobgradebook/easygrade/internal/model"
)

// Status mirrors the save-indicator states.
type Status int32

const (
	StatusIdle Status = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	}
	return "idle"
}

// DocumentStore is the remote-document dependency of the syncer: one opaque
// versioned payload per user, with a live subscription to writes.
type DocumentStore interface {
	LoadDocument(userID string) ([]byte, error)
	SaveDocument(userID string, payload []byte) error
	Watch(ctx context.Context, userID string) <-chan []byte
}

// Syncer flushes one Book to the document store after a debounce delay and
// reconciles remote snapshots back into it.
type Syncer struct {
	store  DocumentStore
	book   *book.Book
	userID string
	delay  time.Duration

	status atomic.Int32

	mu        stdsync.Mutex
	lastSaved []byte // canonical form of the last local/remote agreement point
}

// New creates a syncer. lastSaved seeds the agreement point with the loaded
// document's canonical form; pass nil when no document existed, so the
// initial state gets persisted.
func New(st DocumentStore, bk *book.Book, userID string, delay time.Duration, lastSaved []byte) *Syncer {
	return &Syncer{
		store:     st,
		book:      bk,
		userID:    userID,
		delay:     delay,
		lastSaved: lastSaved,
	}
}

// Status returns the current save-indicator state.
func (s *Syncer) Status() Status {
	return Status(s.status.Load())
}

func (s *Syncer) setStatus(v Status) {
	s.status.Store(int32(v))
}

func (s *Syncer) last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

func (s *Syncer) setLast(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSaved = p
}

// Run drives the save/reconcile loop until ctx is cancelled. Cancellation
// also drops any pending debounced save: sign-out discards, last write wins.
func (s *Syncer) Run(ctx context.Context) {
	snapshots := s.store.Watch(ctx, s.userID)

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		s.setStatus(StatusSaving)
		if timer == nil {
			timer = time.NewTimer(s.delay)
			fire = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-fire:
			default:
			}
		}
		timer.Reset(s.delay)
	}

	// A dataset that differs from what was loaded (a first sign-in default,
	// for instance) is dirty from the start.
	if !s.clean() {
		schedule()
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.book.Changes():
			schedule()
		case <-fire:
			timer = nil
			fire = nil
			s.flush()
		case payload, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			s.apply(payload)
		}
	}
}

func (s *Syncer) clean() bool {
	canon, err := s.book.Snapshot().Canonical()
	if err != nil {
		return true
	}
	return bytes.Equal(canon, s.last())
}

// flush writes the current dataset unless its canonical form already matches
// the last agreement point.
func (s *Syncer) flush() {
	snap := s.book.Snapshot()
	canon, err := snap.Canonical()
	if err != nil {
		slog.Error("serialize gradebook", "user", s.userID, "error", err)
		s.setStatus(StatusError)
		return
	}
	if bytes.Equal(canon, s.last()) {
		s.setStatus(StatusSaved)
		return
	}
	snap.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(snap)
	if err != nil {
		slog.Error("serialize gradebook", "user", s.userID, "error", err)
		s.setStatus(StatusError)
		return
	}
	if err := s.store.SaveDocument(s.userID, payload); err != nil {
		// No retry timer: the next edit's debounce cycle tries again.
		slog.Error("save gradebook", "user", s.userID, "error", err)
		s.setStatus(StatusError)
		return
	}
	s.setLast(canon)
	s.setStatus(StatusSaved)
	slog.Debug("saved gradebook", "user", s.userID, "bytes", len(payload))
}

// apply reconciles an incoming snapshot. Payloads canonically identical to
// the last agreement point are echoes of our own write and are dropped;
// anything else replaces local state and becomes the new agreement point.
func (s *Syncer) apply(payload []byte) {
	var ds model.Dataset
	if err := json.Unmarshal(payload, &ds); err != nil {
		slog.Warn("malformed remote snapshot", "user", s.userID, "error", err)
		return
	}
	ds.Normalize(s.book.Subjects())
	canon, err := ds.Canonical()
	if err != nil {
		slog.Warn("serialize remote snapshot", "user", s.userID, "error", err)
		return
	}
	if bytes.Equal(canon, s.last()) {
		return
	}
	// Move the agreement point before replacing so the resulting change
	// notification does not write the remote data straight back.
	s.setLast(canon)
	s.book.Replace(ds)
	slog.Debug("applied remote snapshot", "user", s.userID)
}
