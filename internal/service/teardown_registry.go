package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// ReleaseFunc frees one capture resource. The registry calls it at most once.
type ReleaseFunc func()

type sessionBinding struct {
	sessionID     uint
	remoteDisable func(ctx context.Context) error
}

// TeardownRegistry tracks every capture resource held open for an attempt:
// live monitor sockets, classifier state, anything with a release handle.
// Components register a named handle when they acquire a resource and
// deregister it on a clean unmount; ForceTeardown is the last-resort sweep
// that releases whatever is left, in any order, any number of times.
type TeardownRegistry struct {
	mu       sync.Mutex
	handles  map[uint]map[string]ReleaseFunc
	sessions map[uint]sessionBinding
}

func NewTeardownRegistry() *TeardownRegistry {
	return &TeardownRegistry{
		handles:  make(map[uint]map[string]ReleaseFunc),
		sessions: make(map[uint]sessionBinding),
	}
}

// Register records a named release handle for the attempt. Re-registering a
// name replaces the previous handle without invoking it.
func (t *TeardownRegistry) Register(attemptID uint, name string, release ReleaseFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handles[attemptID] == nil {
		t.handles[attemptID] = make(map[string]ReleaseFunc)
	}
	t.handles[attemptID][name] = release
}

// Deregister drops a handle without invoking it, for components that already
// released their resource on their own.
func (t *TeardownRegistry) Deregister(attemptID uint, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handles[attemptID], name)
}

// BindSession attaches the administrative camera-disable escape hatch that
// ForceTeardown fires after local release.
func (t *TeardownRegistry) BindSession(attemptID, sessionID uint, remoteDisable func(ctx context.Context) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[attemptID] = sessionBinding{sessionID: sessionID, remoteDisable: remoteDisable}
}

// ForceTeardown releases every handle registered for the attempt, then makes
// the best-effort remote disable call if one is bound. A panicking handle
// never blocks the remaining handles, and a remote failure never undoes the
// local release. A repeat call finds an empty registry and does nothing.
func (t *TeardownRegistry) ForceTeardown(ctx context.Context, attemptID uint) {
	t.mu.Lock()
	handles := t.handles[attemptID]
	delete(t.handles, attemptID)
	binding, hasBinding := t.sessions[attemptID]
	delete(t.sessions, attemptID)
	t.mu.Unlock()

	for name, release := range handles {
		releaseQuietly(attemptID, name, release)
	}
	if len(handles) > 0 {
		log.Info().Uint("attemptID", attemptID).Int("handles", len(handles)).Msg("Capture resources released")
	}

	if hasBinding && binding.remoteDisable != nil {
		if err := binding.remoteDisable(ctx); err != nil {
			log.Warn().
				Err(err).
				Uint("attemptID", attemptID).
				Uint("sessionID", binding.sessionID).
				Msg("Remote camera disable failed")
		}
	}
}

// TeardownAll releases local handles for every attempt. Remote disables are
// skipped: a process shutdown says nothing about any particular session.
func (t *TeardownRegistry) TeardownAll() {
	t.mu.Lock()
	all := t.handles
	t.handles = make(map[uint]map[string]ReleaseFunc)
	t.sessions = make(map[uint]sessionBinding)
	t.mu.Unlock()

	for attemptID, handles := range all {
		for name, release := range handles {
			releaseQuietly(attemptID, name, release)
		}
	}
}

func releaseQuietly(attemptID uint, name string, release ReleaseFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Uint("attemptID", attemptID).
				Str("handle", name).
				Interface("panic", rec).
				Msg("Release handle panicked")
		}
	}()
	release()
}
