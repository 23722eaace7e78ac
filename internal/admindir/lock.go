package admindir

import (
	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
)

// SessionLock is the exclusive advisory lock guarding one admin directory
// for the session's lifetime (spec §5 "Admin directory lock"). A second
// engine instance calling Acquire against the same admindir blocks (or, via
// TryAcquire, fails fast) until this one releases it.
//
// dpkg itself takes two locks - "lock" (database) and "lock-frontend"
// (front-end coordination); this engine's core only needs the database
// lock, but both paths are modeled so a front-end can take the frontend
// lock independently without contending on the same file the engine uses.
type SessionLock struct {
	db       *flock.Flock
	frontend *flock.Flock
}

// NewSessionLock prepares (but does not acquire) the locks for dir.
func NewSessionLock(dir Dir) *SessionLock {
	return &SessionLock{
		db:       flock.NewFlock(dir.Lock()),
		frontend: flock.NewFlock(dir.LockFrontend()),
	}
}

// Acquire blocks until the database lock is held.
func (l *SessionLock) Acquire() error {
	if err := l.db.Lock(); err != nil {
		return errors.Wrapf(err, "locking %s", l.db.Path())
	}
	return nil
}

// TryAcquire attempts the database lock without blocking, reporting false
// (not an error) if another session already holds it.
func (l *SessionLock) TryAcquire() (bool, error) {
	ok, err := l.db.TryLock()
	if err != nil {
		return false, errors.Wrapf(err, "locking %s", l.db.Path())
	}
	return ok, nil
}

// Release drops the database lock. Safe to call even if Acquire/TryAcquire
// never succeeded.
func (l *SessionLock) Release() error {
	if !l.db.Locked() {
		return nil
	}
	return errors.Wrapf(l.db.Unlock(), "unlocking %s", l.db.Path())
}

// AcquireFrontend blocks until the frontend coordination lock is held,
// used by a front-end command wrapping several engine operations under one
// user-facing lock.
func (l *SessionLock) AcquireFrontend() error {
	if err := l.frontend.Lock(); err != nil {
		return errors.Wrapf(err, "locking %s", l.frontend.Path())
	}
	return nil
}

// ReleaseFrontend drops the frontend lock.
func (l *SessionLock) ReleaseFrontend() error {
	if !l.frontend.Locked() {
		return nil
	}
	return errors.Wrapf(l.frontend.Unlock(), "unlocking %s", l.frontend.Path())
}
