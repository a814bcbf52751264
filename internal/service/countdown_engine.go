package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type EngineState int

const (
	EngineUninitialized EngineState = iota
	EngineSynced
	EngineTicking
	EnginePaused
	EngineExpired
	EngineStopped
)

func (s EngineState) String() string {
	switch s {
	case EngineUninitialized:
		return "uninitialized"
	case EngineSynced:
		return "synced"
	case EngineTicking:
		return "ticking"
	case EnginePaused:
		return "paused"
	case EngineExpired:
		return "expired"
	case EngineStopped:
		return "stopped"
	}
	return "unknown"
}

type EngineOptions struct {
	TickInterval  time.Duration
	ToleranceSecs int // divergence from the server clock tolerated before adopting its value
	PersistTicks  int // ticks between OnSync checkpoints, 0 disables
}

// EngineCallbacks are invoked outside the engine's lock. OnExpire fires at
// most once for the lifetime of the engine.
type EngineCallbacks struct {
	OnTick   func(attemptID uint, secondsRemaining int)
	OnSync   func(attemptID uint, secondsRemaining int)
	OnExpire func(attemptID uint)
}

// CountdownEngine keeps one attempt's local one-second countdown. It is a
// convenience mirror of the authoritative database clock: seconds are seeded
// and corrected from TimerSnapshots, never invented locally.
type CountdownEngine struct {
	attemptID uint
	opts      EngineOptions
	callbacks EngineCallbacks

	mu                sync.Mutex
	state             EngineState
	remaining         int
	ticksSincePersist int

	stop       chan struct{}
	stopOnce   sync.Once
	expireOnce sync.Once
}

func NewCountdownEngine(attemptID uint, opts EngineOptions, callbacks EngineCallbacks) *CountdownEngine {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &CountdownEngine{
		attemptID: attemptID,
		opts:      opts,
		callbacks: callbacks,
		state:     EngineUninitialized,
		stop:      make(chan struct{}),
	}
}

// Seed installs the first authoritative snapshot. Seeding with zero seconds
// expires the engine immediately, before any tick.
func (e *CountdownEngine) Seed(snap TimerSnapshot) {
	e.mu.Lock()
	if e.state != EngineUninitialized {
		e.mu.Unlock()
		return
	}
	e.remaining = snap.SecondsRemaining
	if e.remaining <= 0 {
		e.remaining = 0
		e.state = EngineExpired
		e.mu.Unlock()
		e.fireExpiry()
		return
	}
	e.state = EngineSynced
	e.mu.Unlock()
}

// Start launches the tick loop. It is a no-op unless the engine is Synced.
func (e *CountdownEngine) Start() {
	e.mu.Lock()
	if e.state != EngineSynced {
		e.mu.Unlock()
		return
	}
	e.state = EngineTicking
	e.mu.Unlock()

	go e.run()
}

func (e *CountdownEngine) run() {
	ticker := time.NewTicker(e.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			if e.step() {
				return
			}
		}
	}
}

// step advances the countdown by one tick and reports whether the engine has
// reached a final state. Paused ticks pass without decrementing.
func (e *CountdownEngine) step() bool {
	e.mu.Lock()
	switch e.state {
	case EngineTicking:
	case EnginePaused, EngineSynced:
		e.mu.Unlock()
		return false
	default:
		e.mu.Unlock()
		return true
	}

	e.remaining--
	if e.remaining <= 0 {
		e.remaining = 0
		e.state = EngineExpired
		e.mu.Unlock()
		e.fireExpiry()
		return true
	}

	remaining := e.remaining
	persist := false
	if e.opts.PersistTicks > 0 {
		e.ticksSincePersist++
		if e.ticksSincePersist >= e.opts.PersistTicks {
			e.ticksSincePersist = 0
			persist = true
		}
	}
	e.mu.Unlock()

	if e.callbacks.OnTick != nil {
		e.callbacks.OnTick(e.attemptID, remaining)
	}
	if persist && e.callbacks.OnSync != nil {
		e.callbacks.OnSync(e.attemptID, remaining)
	}
	return false
}

// Resync reconciles the local counter against a fresh authoritative snapshot.
// The server value wins whenever the two disagree by more than the tolerance.
// An expired engine stays expired: once the callback has fired, no snapshot
// may resurrect the attempt.
func (e *CountdownEngine) Resync(snap TimerSnapshot) {
	e.mu.Lock()
	if e.state != EngineSynced && e.state != EngineTicking && e.state != EnginePaused {
		e.mu.Unlock()
		return
	}

	server := snap.SecondsRemaining
	if server < 0 {
		server = 0
	}
	diff := e.remaining - server
	if diff < 0 {
		diff = -diff
	}
	if diff > e.opts.ToleranceSecs {
		log.Warn().
			Uint("attemptID", e.attemptID).
			Int("local", e.remaining).
			Int("server", server).
			Msg("Local countdown diverged from authoritative clock, adopting server value")
		e.remaining = server
		e.ticksSincePersist = 0
	}
	if e.remaining <= 0 {
		e.remaining = 0
		e.state = EngineExpired
		e.mu.Unlock()
		e.fireExpiry()
		return
	}
	e.mu.Unlock()
}

// Pause freezes the countdown without cancelling the tick loop.
func (e *CountdownEngine) Pause() {
	e.mu.Lock()
	if e.state == EngineTicking {
		e.state = EnginePaused
	}
	e.mu.Unlock()
}

// Resume adopts the given snapshot and restarts ticking. The snapshot is
// mandatory so a paused interval can never be deducted locally.
func (e *CountdownEngine) Resume(snap TimerSnapshot) {
	e.mu.Lock()
	if e.state != EnginePaused {
		e.mu.Unlock()
		return
	}
	if snap.SecondsRemaining >= 0 {
		e.remaining = snap.SecondsRemaining
	}
	if e.remaining <= 0 {
		e.remaining = 0
		e.state = EngineExpired
		e.mu.Unlock()
		e.fireExpiry()
		return
	}
	e.state = EngineTicking
	e.mu.Unlock()
}

// Stop cancels the tick loop. After Stop no callback will fire, including
// expiry, unless it already has.
func (e *CountdownEngine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
	e.mu.Lock()
	if e.state != EngineExpired {
		e.state = EngineStopped
	}
	e.mu.Unlock()
}

func (e *CountdownEngine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remaining
}

func (e *CountdownEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *CountdownEngine) fireExpiry() {
	e.expireOnce.Do(func() {
		if e.callbacks.OnExpire != nil {
			e.callbacks.OnExpire(e.attemptID)
		}
	})
}

// CountdownManager guarantees at most one live engine per attempt, preserving
// the single-logical-timer rule even when several handlers race to start one.
type CountdownManager struct {
	mu      sync.Mutex
	engines map[uint]*CountdownEngine
}

func NewCountdownManager() *CountdownManager {
	return &CountdownManager{engines: make(map[uint]*CountdownEngine)}
}

// GetOrCreate returns the attempt's engine, building it with create on first
// use. The second return value reports whether a new engine was installed.
func (m *CountdownManager) GetOrCreate(attemptID uint, create func() *CountdownEngine) (*CountdownEngine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if engine, ok := m.engines[attemptID]; ok {
		return engine, false
	}
	engine := create()
	m.engines[attemptID] = engine
	return engine, true
}

func (m *CountdownManager) Get(attemptID uint) (*CountdownEngine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	engine, ok := m.engines[attemptID]
	return engine, ok
}

// Remove stops the attempt's engine and forgets it.
func (m *CountdownManager) Remove(attemptID uint) {
	m.mu.Lock()
	engine, ok := m.engines[attemptID]
	if ok {
		delete(m.engines, attemptID)
	}
	m.mu.Unlock()
	if ok {
		engine.Stop()
	}
}

// StopAll cancels every live engine. Used on process shutdown; the persisted
// snapshots make the timers recoverable on the next boot.
func (m *CountdownManager) StopAll() {
	m.mu.Lock()
	engines := make([]*CountdownEngine, 0, len(m.engines))
	for _, engine := range m.engines {
		engines = append(engines, engine)
	}
	m.engines = make(map[uint]*CountdownEngine)
	m.mu.Unlock()
	for _, engine := range engines {
		engine.Stop()
	}
}
