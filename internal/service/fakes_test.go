package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/lshigami/Margays/config"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
)

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	// An hour-long tick keeps background tickers inert; tests drive the
	// countdown through step() instead of waiting on wall time.
	cfg.Proctor.TickInterval = time.Hour
	cfg.Proctor.SyncTimeout = time.Second
	cfg.Proctor.ResyncToleranceSecs = 2
	cfg.Proctor.TimerPersistTicks = 0
	cfg.Proctor.SignalRateWindowSec = 3
	cfg.Proctor.ReporterQueueSize = 16
	cfg.Proctor.ReporterMaxRetries = 1
	cfg.Proctor.PresenceTTL = time.Minute
	cfg.Proctor.StartLockTTL = 10 * time.Second
	return cfg
}

// fakeAttemptRepo is an in-memory AttemptRepository with the same not-found,
// duplicate-key and compare-and-set behavior as the real one.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	nextID   uint
	attempts map[uint]*model.ExamAttempt

	fetchErr    error
	fetchClock  map[uint]int // overrides FetchTimer seconds when set
	touchErr    error
	touched     map[uint][]time.Time
	snapshots   map[uint][]int
	transitions int
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{
		nextID:     1,
		attempts:   make(map[uint]*model.ExamAttempt),
		fetchClock: make(map[uint]int),
		touched:    make(map[uint][]time.Time),
		snapshots:  make(map[uint][]int),
	}
}

func (r *fakeAttemptRepo) put(attempt *model.ExamAttempt) *model.ExamAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt.ID == 0 {
		attempt.ID = r.nextID
		r.nextID++
	} else if attempt.ID >= r.nextID {
		r.nextID = attempt.ID + 1
	}
	r.attempts[attempt.ID] = attempt
	return attempt
}

func (r *fakeAttemptRepo) Create(attempt *model.ExamAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.attempts {
		if existing.StudentID == attempt.StudentID && existing.ExamID == attempt.ExamID && existing.SessionID == attempt.SessionID {
			return gorm.ErrDuplicatedKey
		}
	}
	attempt.ID = r.nextID
	r.nextID++
	r.attempts[attempt.ID] = attempt
	return nil
}

func (r *fakeAttemptRepo) FindByID(id uint) (*model.ExamAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *attempt
	return &copied, nil
}

func (r *fakeAttemptRepo) FindByIDWithSession(id uint) (*model.ExamAttempt, error) {
	return r.FindByID(id)
}

func (r *fakeAttemptRepo) FindByIdentity(studentID, examID, sessionID uint) (*model.ExamAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, attempt := range r.attempts {
		if attempt.StudentID == studentID && attempt.ExamID == examID && attempt.SessionID == sessionID {
			copied := *attempt
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAttemptRepo) FindAllInProgress() ([]model.ExamAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExamAttempt
	for _, attempt := range r.attempts {
		if attempt.Status == model.AttemptInProgress {
			out = append(out, *attempt)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) FetchTimer(ctx context.Context, id uint) (int, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return 0, time.Time{}, r.fetchErr
	}
	attempt, ok := r.attempts[id]
	if !ok {
		return 0, time.Time{}, gorm.ErrRecordNotFound
	}
	if seconds, ok := r.fetchClock[id]; ok {
		return seconds, time.Now(), nil
	}
	return attempt.TimeRemaining, time.Now(), nil
}

func (r *fakeAttemptRepo) SaveTimerSnapshot(ctx context.Context, id uint, secondsRemaining int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt, ok := r.attempts[id]; ok {
		attempt.TimeRemaining = secondsRemaining
		attempt.TimerSyncedAt = time.Now()
	}
	r.snapshots[id] = append(r.snapshots[id], secondsRemaining)
	return nil
}

func (r *fakeAttemptRepo) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.touchErr != nil {
		return r.touchErr
	}
	if attempt, ok := r.attempts[id]; ok {
		attempt.LastActivityAt = at
	}
	r.touched[id] = append(r.touched[id], at)
	return nil
}

func (r *fakeAttemptRepo) TransitionToSubmitted(ctx context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok || attempt.Status != model.AttemptInProgress {
		return false, nil
	}
	now := time.Now()
	attempt.Status = model.AttemptSubmitted
	attempt.SubmittedAt = &now
	attempt.TimerSyncedAt = now
	attempt.IsPaused = false
	attempt.PauseReason = ""
	r.transitions++
	return true, nil
}

func (r *fakeAttemptRepo) Pause(ctx context.Context, id uint, reason string, secondsRemaining int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok || attempt.Status != model.AttemptInProgress || attempt.IsPaused {
		return false, nil
	}
	attempt.IsPaused = true
	attempt.PauseReason = reason
	attempt.TimeRemaining = secondsRemaining
	attempt.TimerSyncedAt = time.Now()
	return true, nil
}

func (r *fakeAttemptRepo) Unpause(ctx context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[id]
	if !ok || attempt.Status != model.AttemptInProgress || !attempt.IsPaused {
		return false, nil
	}
	attempt.IsPaused = false
	attempt.PauseReason = ""
	attempt.TimerSyncedAt = time.Now()
	return true, nil
}

func (r *fakeAttemptRepo) transitionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitions
}

func (r *fakeAttemptRepo) lastActivity(id uint) (time.Time, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	touches := r.touched[id]
	if len(touches) == 0 {
		return time.Time{}, 0
	}
	return touches[len(touches)-1], len(touches)
}

var errAppendFailed = errors.New("append failed")

// fakeViolationRepo is an in-memory append-only log. failures makes the next
// N Append calls fail; gate, when set, blocks Append until the channel closes,
// and entered receives once per call as Append begins.
type fakeViolationRepo struct {
	mu       sync.Mutex
	events   []model.ViolationEvent
	failures int
	attempts int
	gate     chan struct{}
	entered  chan struct{}
}

func newFakeViolationRepo() *fakeViolationRepo {
	return &fakeViolationRepo{}
}

func (r *fakeViolationRepo) Append(ctx context.Context, event *model.ViolationEvent) error {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failures > 0 {
		r.failures--
		return errAppendFailed
	}
	for _, existing := range r.events {
		if existing.EventUID == event.EventUID {
			return nil // duplicates are absorbed, same as the real repository
		}
	}
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeViolationRepo) FindByAttemptID(attemptID uint) ([]model.ViolationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ViolationEvent
	for _, event := range r.events {
		if event.AttemptID == attemptID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *fakeViolationRepo) CountByType(attemptID uint) (map[model.ViolationType]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[model.ViolationType]int)
	for _, event := range r.events {
		if event.AttemptID == attemptID {
			counts[event.Type]++
		}
	}
	return counts, nil
}

func (r *fakeViolationRepo) stored() []model.ViolationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ViolationEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *fakeViolationRepo) appendAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uint]*model.ExamSession
	disabled []uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uint]*model.ExamSession)}
}

func (r *fakeSessionRepo) put(session *model.ExamSession) *model.ExamSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return session
}

func (r *fakeSessionRepo) FindByID(id uint) (*model.ExamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) DisableCamera(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.CameraDisabled = true
	}
	r.disabled = append(r.disabled, id)
	return nil
}

func (r *fakeSessionRepo) disableCalls() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint, len(r.disabled))
	copy(out, r.disabled)
	return out
}

type fakeExamRepo struct {
	mu    sync.Mutex
	exams map[uint]*model.Exam
}

func newFakeExamRepo() *fakeExamRepo {
	return &fakeExamRepo{exams: make(map[uint]*model.Exam)}
}

func (r *fakeExamRepo) put(exam *model.Exam) *model.Exam {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exams[exam.ID] = exam
	return exam
}

func (r *fakeExamRepo) FindByID(id uint) (*model.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exam, ok := r.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *exam
	return &copied, nil
}

// fakeTimerSync serves canned snapshots per attempt so tests control the
// authoritative clock exactly.
type fakeTimerSync struct {
	mu      sync.Mutex
	seconds map[uint]int
	err     error
	errFor  map[uint]error
	calls   int
}

func newFakeTimerSync() *fakeTimerSync {
	return &fakeTimerSync{seconds: make(map[uint]int), errFor: make(map[uint]error)}
}

func (s *fakeTimerSync) set(attemptID uint, seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seconds[attemptID] = seconds
}

func (s *fakeTimerSync) Sync(ctx context.Context, attemptID uint) (TimerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return TimerSnapshot{}, &SyncError{AttemptID: attemptID, Err: s.err}
	}
	if err, ok := s.errFor[attemptID]; ok {
		return TimerSnapshot{}, &SyncError{AttemptID: attemptID, Err: err}
	}
	seconds, ok := s.seconds[attemptID]
	if !ok {
		return TimerSnapshot{}, &SyncError{AttemptID: attemptID, Err: ErrAttemptNotFound}
	}
	return TimerSnapshot{SecondsRemaining: seconds, AsOf: time.Now()}, nil
}

func (s *fakeTimerSync) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeStartLocker struct {
	mu       sync.Mutex
	denied   bool
	err      error
	acquired int
	released int
}

func (l *fakeStartLocker) Acquire(ctx context.Context, studentID, examID, sessionID uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.denied {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeStartLocker) Release(ctx context.Context, studentID, examID, sessionID uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

type fakePresenceStore struct {
	mu        sync.Mutex
	refreshes map[uint]time.Time
	cleared   []uint
}

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{refreshes: make(map[uint]time.Time)}
}

func (p *fakePresenceStore) Refresh(ctx context.Context, attemptID uint, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes[attemptID] = at
	return nil
}

func (p *fakePresenceStore) LastSeen(ctx context.Context, attemptID uint) (time.Time, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.refreshes[attemptID]
	return at, ok, nil
}

func (p *fakePresenceStore) Clear(ctx context.Context, attemptID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.refreshes, attemptID)
	p.cleared = append(p.cleared, attemptID)
	return nil
}

// fakeReporter records what the violation service hands off instead of
// queueing it.
type fakeReporter struct {
	mu      sync.Mutex
	events  []model.ViolationEvent
	touches []uint
}

func (r *fakeReporter) Report(event *model.ViolationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
}

func (r *fakeReporter) TouchActivity(attemptID uint, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touches = append(r.touches, attemptID)
}

func (r *fakeReporter) Stop() {}

func (r *fakeReporter) queued() []model.ViolationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ViolationEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *fakeReporter) touchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.touches)
}

type notifierFrame struct {
	kind    string
	seconds int
	ack     dto.ViolationAckResponse
	paused  bool
	reason  string
	status  model.AttemptStatus
}

type fakeNotifier struct {
	mu     sync.Mutex
	frames []notifierFrame
}

func (n *fakeNotifier) NotifyTick(attemptID uint, secondsRemaining int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, notifierFrame{kind: "tick", seconds: secondsRemaining})
}

func (n *fakeNotifier) NotifyViolation(attemptID uint, ack dto.ViolationAckResponse) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, notifierFrame{kind: "violation", ack: ack})
}

func (n *fakeNotifier) NotifyPause(attemptID uint, paused bool, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, notifierFrame{kind: "pause", paused: paused, reason: reason})
}

func (n *fakeNotifier) NotifyStatus(attemptID uint, status model.AttemptStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, notifierFrame{kind: "status", status: status})
}

func (n *fakeNotifier) byKind(kind string) []notifierFrame {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifierFrame
	for _, frame := range n.frames {
		if frame.kind == kind {
			out = append(out, frame)
		}
	}
	return out
}
