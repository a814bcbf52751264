package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lshigami/Margays/config"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AttemptNotifier fans live attempt updates out to watching clients.
// Implementations must not block; the lifecycle calls these from timer
// goroutines.
type AttemptNotifier interface {
	NotifyTick(attemptID uint, secondsRemaining int)
	NotifyViolation(attemptID uint, ack dto.ViolationAckResponse)
	NotifyPause(attemptID uint, paused bool, reason string)
	NotifyStatus(attemptID uint, status model.AttemptStatus)
}

// AttemptLifecycleService owns every attempt state transition. Reads and
// writes of the attempt record surface recoverable errors to the caller;
// terminal transitions are guarded compare-and-set writes so racing paths
// (student submit, timer expiry, a second tab) produce exactly one outcome.
type AttemptLifecycleService interface {
	Start(ctx context.Context, sessionID, studentID, examID uint) (*model.ExamAttempt, error)
	Resume(ctx context.Context, attemptID uint) (*model.ExamAttempt, TimerSnapshot, error)
	Submit(ctx context.Context, attemptID uint) (*model.ExamAttempt, error)
	Pause(ctx context.Context, attemptID uint, reason string) (*model.ExamAttempt, error)
	Unpause(ctx context.Context, attemptID uint) (*model.ExamAttempt, error)
	RemainingSeconds(ctx context.Context, attemptID uint) (TimerSnapshot, error)
	Result(ctx context.Context, attemptID uint) (*dto.AttemptResultResponse, error)
	ForceTeardown(ctx context.Context, attemptID uint)
	RecoverActiveAttempts() error
	Shutdown()
}

type attemptLifecycleService struct {
	cfg           *config.Config
	attemptRepo   repository.AttemptRepository
	examRepo      repository.ExamRepository
	sessionRepo   repository.SessionRepository
	violationRepo repository.ViolationRepository
	sync          TimerSyncService
	engines       *CountdownManager
	classifiers   *ClassifierRegistry
	teardown      *TeardownRegistry
	locker        StartLocker
	reporter      IncidentReporter
	presence      PresenceStore
	notifier      AttemptNotifier
}

func NewAttemptLifecycleService(
	cfg *config.Config,
	attemptRepo repository.AttemptRepository,
	examRepo repository.ExamRepository,
	sessionRepo repository.SessionRepository,
	violationRepo repository.ViolationRepository,
	syncService TimerSyncService,
	engines *CountdownManager,
	classifiers *ClassifierRegistry,
	teardown *TeardownRegistry,
	locker StartLocker,
	reporter IncidentReporter,
	presence PresenceStore,
	notifier AttemptNotifier,
) AttemptLifecycleService {
	return &attemptLifecycleService{
		cfg:           cfg,
		attemptRepo:   attemptRepo,
		examRepo:      examRepo,
		sessionRepo:   sessionRepo,
		violationRepo: violationRepo,
		sync:          syncService,
		engines:       engines,
		classifiers:   classifiers,
		teardown:      teardown,
		locker:        locker,
		reporter:      reporter,
		presence:      presence,
		notifier:      notifier,
	}
}

// Start admits a student into a session. Starting twice for one identity
// triple never produces two attempts: an existing in-progress attempt is
// adopted, a terminal one is rejected, and a true race collapses through the
// start lock and the unique index.
func (s *attemptLifecycleService) Start(ctx context.Context, sessionID, studentID, examID uint) (*model.ExamAttempt, error) {
	session, err := s.sessionRepo.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.ExamID != examID {
		return nil, &ConflictError{Reason: "exam does not belong to this session"}
	}
	if session.Status != model.SessionActive || !session.IsOpenAt(time.Now()) {
		return nil, ErrSessionWindowClosed
	}

	exam, err := s.examRepo.FindByID(examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	if existing, findErr := s.attemptRepo.FindByIdentity(studentID, examID, sessionID); findErr == nil {
		return s.adoptExisting(ctx, existing, session)
	} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return nil, findErr
	}

	acquired, err := s.locker.Acquire(ctx, studentID, examID, sessionID)
	if err != nil {
		// Degraded mode: the unique index still guarantees a single attempt.
		log.Warn().Err(err).Msg("Start lock unavailable, relying on unique index")
		acquired = true
	}
	if !acquired {
		if existing, findErr := s.attemptRepo.FindByIdentity(studentID, examID, sessionID); findErr == nil {
			return s.adoptExisting(ctx, existing, session)
		}
		return nil, &ConflictError{Reason: "attempt is already being started"}
	}
	defer func() {
		if releaseErr := s.locker.Release(context.Background(), studentID, examID, sessionID); releaseErr != nil {
			log.Debug().Err(releaseErr).Msg("Start lock release failed")
		}
	}()

	now := time.Now()
	attempt := &model.ExamAttempt{
		StudentID:      studentID,
		ExamID:         examID,
		SessionID:      sessionID,
		Status:         model.AttemptInProgress,
		TimeRemaining:  exam.DurationSeconds(),
		TimerSyncedAt:  now,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := s.attemptRepo.Create(attempt); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, findErr := s.attemptRepo.FindByIdentity(studentID, examID, sessionID); findErr == nil {
				return s.adoptExisting(ctx, existing, session)
			}
			return nil, &ConflictError{Reason: "attempt already exists for this student, exam and session"}
		}
		return nil, err
	}

	// Re-anchor the snapshot on the database clock so the app clock never
	// leaks into remaining-time math.
	if err := s.attemptRepo.SaveTimerSnapshot(ctx, attempt.ID, exam.DurationSeconds()); err != nil {
		log.Warn().Err(err).Uint("attemptID", attempt.ID).Msg("Timer re-anchor failed, keeping creation timestamp")
	}

	s.bindTeardown(attempt.ID, session)
	if snapshot, syncErr := s.sync.Sync(ctx, attempt.ID); syncErr == nil {
		s.armEngine(attempt, snapshot)
	} else {
		log.Warn().Err(syncErr).Uint("attemptID", attempt.ID).Msg("Initial timer sync failed, engine armed on next contact")
	}

	log.Info().
		Uint("attemptID", attempt.ID).
		Uint("studentID", studentID).
		Uint("examID", examID).
		Uint("sessionID", sessionID).
		Int("seconds", exam.DurationSeconds()).
		Msg("Attempt started")
	return attempt, nil
}

// adoptExisting resolves a start request that found an attempt already in
// place. In-progress attempts are reattached idempotently, terminal ones are
// conflicts.
func (s *attemptLifecycleService) adoptExisting(ctx context.Context, attempt *model.ExamAttempt, session *model.ExamSession) (*model.ExamAttempt, error) {
	if attempt.IsTerminal() {
		return nil, &ConflictError{Reason: fmt.Sprintf("attempt is already %s", attempt.Status)}
	}
	s.bindTeardown(attempt.ID, session)
	if _, ok := s.engines.Get(attempt.ID); !ok {
		if snapshot, syncErr := s.sync.Sync(ctx, attempt.ID); syncErr == nil {
			s.seedClassifier(attempt.ID)
			s.armEngine(attempt, snapshot)
		}
	}
	log.Debug().Uint("attemptID", attempt.ID).Msg("Existing attempt adopted on start")
	return attempt, nil
}

// Resume re-enters an in-progress attempt after a reload or reconnect. The
// local counter is rebuilt from the authoritative clock, never from anything
// the client cached.
func (s *attemptLifecycleService) Resume(ctx context.Context, attemptID uint) (*model.ExamAttempt, TimerSnapshot, error) {
	attempt, err := s.attemptRepo.FindByIDWithSession(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, TimerSnapshot{}, ErrAttemptNotFound
		}
		return nil, TimerSnapshot{}, err
	}
	if attempt.IsTerminal() {
		return nil, TimerSnapshot{}, &ConflictError{Reason: fmt.Sprintf("attempt is already %s", attempt.Status)}
	}

	snapshot, err := s.sync.Sync(ctx, attemptID)
	if err != nil {
		return nil, TimerSnapshot{}, err
	}

	s.seedClassifier(attemptID)
	s.bindTeardown(attemptID, &attempt.Session)
	engine := s.armEngine(attempt, snapshot)
	s.reporter.TouchActivity(attemptID, time.Now())

	if engine.State() == EngineExpired {
		if refreshed, findErr := s.attemptRepo.FindByID(attemptID); findErr == nil {
			attempt = refreshed
		}
	}

	log.Info().
		Uint("attemptID", attemptID).
		Int("seconds", engine.Remaining()).
		Msg("Attempt resumed")
	return attempt, TimerSnapshot{SecondsRemaining: engine.Remaining(), AsOf: snapshot.AsOf}, nil
}

// Submit is the student-initiated twin of timer expiry.
func (s *attemptLifecycleService) Submit(ctx context.Context, attemptID uint) (*model.ExamAttempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.IsTerminal() {
		return nil, &ConflictError{Reason: fmt.Sprintf("attempt is already %s", attempt.Status)}
	}

	transitioned, err := s.attemptRepo.TransitionToSubmitted(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, &ConflictError{Reason: "attempt is no longer in progress"}
	}

	s.finalize(ctx, attemptID, model.AttemptSubmitted)
	log.Info().Uint("attemptID", attemptID).Msg("Attempt submitted")

	refreshed, findErr := s.attemptRepo.FindByID(attemptID)
	if findErr != nil {
		attempt.Status = model.AttemptSubmitted
		return attempt, nil
	}
	return refreshed, nil
}

// Pause freezes the countdown. Proctor-only; pausing checkpoints the frozen
// remaining seconds so the paused interval is never billed to the student.
func (s *attemptLifecycleService) Pause(ctx context.Context, attemptID uint, reason string) (*model.ExamAttempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, &ConflictError{Reason: "only an in-progress attempt can be paused"}
	}
	if attempt.IsPaused {
		return nil, &ConflictError{Reason: "attempt is already paused"}
	}

	engine, hasEngine := s.engines.Get(attemptID)
	remaining := -1
	if hasEngine {
		engine.Pause()
		remaining = engine.Remaining()
	}
	if remaining < 0 {
		snapshot, syncErr := s.sync.Sync(ctx, attemptID)
		if syncErr != nil {
			return nil, syncErr
		}
		remaining = snapshot.SecondsRemaining
	}

	paused, err := s.attemptRepo.Pause(ctx, attemptID, reason, remaining)
	if err != nil || !paused {
		if hasEngine {
			engine.Resume(TimerSnapshot{SecondsRemaining: remaining})
		}
		if err != nil {
			return nil, err
		}
		return nil, &ConflictError{Reason: "attempt is no longer pausable"}
	}

	if s.notifier != nil {
		s.notifier.NotifyPause(attemptID, true, reason)
	}
	log.Info().Uint("attemptID", attemptID).Str("reason", reason).Int("seconds", remaining).Msg("Attempt paused")
	return s.attemptRepo.FindByID(attemptID)
}

func (s *attemptLifecycleService) Unpause(ctx context.Context, attemptID uint) (*model.ExamAttempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress || !attempt.IsPaused {
		return nil, &ConflictError{Reason: "attempt is not paused"}
	}

	resumed, err := s.attemptRepo.Unpause(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !resumed {
		return nil, &ConflictError{Reason: "attempt is no longer paused"}
	}

	snapshot := TimerSnapshot{SecondsRemaining: attempt.TimeRemaining, AsOf: time.Now()}
	if engine, ok := s.engines.Get(attemptID); ok {
		engine.Resume(snapshot)
	} else {
		attempt.IsPaused = false
		s.armEngine(attempt, snapshot)
	}

	if s.notifier != nil {
		s.notifier.NotifyPause(attemptID, false, "")
	}
	log.Info().Uint("attemptID", attemptID).Int("seconds", attempt.TimeRemaining).Msg("Attempt unpaused")
	return s.attemptRepo.FindByID(attemptID)
}

// RemainingSeconds is the live value the presentation layer polls once per
// second. It reads the local engine when one is armed and falls back to the
// authoritative clock, re-arming the engine as a side effect.
func (s *attemptLifecycleService) RemainingSeconds(ctx context.Context, attemptID uint) (TimerSnapshot, error) {
	if engine, ok := s.engines.Get(attemptID); ok {
		return TimerSnapshot{SecondsRemaining: engine.Remaining(), AsOf: time.Now()}, nil
	}
	snapshot, err := s.sync.Sync(ctx, attemptID)
	if err != nil {
		return TimerSnapshot{}, err
	}
	if attempt, findErr := s.attemptRepo.FindByID(attemptID); findErr == nil && attempt.Status == model.AttemptInProgress {
		s.armEngine(attempt, snapshot)
	}
	return snapshot, nil
}

// Result reports the attempt outcome with raw results locked behind the
// exam's release flag. The flag is read every call; attempt status alone
// never decides visibility.
func (s *attemptLifecycleService) Result(ctx context.Context, attemptID uint) (*dto.AttemptResultResponse, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if !attempt.IsTerminal() {
		return nil, &ConflictError{Reason: "attempt is still in progress"}
	}

	exam, err := s.examRepo.FindByID(attempt.ExamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	result := &dto.AttemptResultResponse{
		AttemptID:   attempt.ID,
		Status:      string(attempt.Status),
		Outcome:     "pending",
		SubmittedAt: attempt.SubmittedAt,
	}
	if !exam.ResultsReleased {
		return result, nil
	}

	result.Outcome = "released"
	result.SecondsUsed = exam.DurationSeconds() - attempt.TimeRemaining
	events, err := s.violationRepo.FindByAttemptID(attemptID)
	if err != nil {
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("Violation summary unavailable for result")
		return result, nil
	}
	summary := summarizeViolations(events)
	result.Violations = &summary
	return result, nil
}

// ForceTeardown releases presentation resources for the attempt. Callable
// from any client lifecycle hook at any moment; it does not touch the
// server-side countdown of a live attempt.
func (s *attemptLifecycleService) ForceTeardown(ctx context.Context, attemptID uint) {
	s.teardown.ForceTeardown(ctx, attemptID)
}

// RecoverActiveAttempts re-arms countdown engines for every in-progress
// attempt after a process restart. Attempts whose sync fails are picked up
// again on their next client contact.
func (s *attemptLifecycleService) RecoverActiveAttempts() error {
	attempts, err := s.attemptRepo.FindAllInProgress()
	if err != nil {
		return err
	}
	recovered := 0
	for i := range attempts {
		attempt := &attempts[i]
		snapshot, syncErr := s.sync.Sync(context.Background(), attempt.ID)
		if syncErr != nil {
			log.Warn().Err(syncErr).Uint("attemptID", attempt.ID).Msg("Timer recovery sync failed")
			continue
		}
		s.seedClassifier(attempt.ID)
		s.bindTeardown(attempt.ID, &attempt.Session)
		s.armEngine(attempt, snapshot)
		recovered++
	}
	if recovered > 0 {
		log.Info().Int("count", recovered).Msg("Re-armed countdown timers for in-progress attempts")
	}
	return nil
}

// Shutdown stops every engine and sweeps local handles. Persisted snapshots
// make the timers recoverable on the next boot.
func (s *attemptLifecycleService) Shutdown() {
	s.engines.StopAll()
	s.teardown.TeardownAll()
}

// armEngine installs or reconciles the attempt's countdown engine against a
// fresh snapshot. At most one engine exists per attempt.
func (s *attemptLifecycleService) armEngine(attempt *model.ExamAttempt, snapshot TimerSnapshot) *CountdownEngine {
	engine, created := s.engines.GetOrCreate(attempt.ID, func() *CountdownEngine {
		return NewCountdownEngine(attempt.ID, EngineOptions{
			TickInterval:  s.cfg.Proctor.TickInterval,
			ToleranceSecs: s.cfg.Proctor.ResyncToleranceSecs,
			PersistTicks:  s.cfg.Proctor.TimerPersistTicks,
		}, EngineCallbacks{
			OnTick:   s.handleTick,
			OnSync:   s.handleSync,
			OnExpire: s.handleExpiry,
		})
	})
	if created {
		engine.Seed(snapshot)
		engine.Start()
		if attempt.IsPaused {
			engine.Pause()
		}
	} else {
		engine.Resync(snapshot)
	}
	return engine
}

func (s *attemptLifecycleService) seedClassifier(attemptID uint) {
	counts, err := s.violationRepo.CountByType(attemptID)
	if err != nil {
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("Violation counter reconstruction failed")
		return
	}
	s.classifiers.For(attemptID).SeedCounters(counts)
}

func (s *attemptLifecycleService) bindTeardown(attemptID uint, session *model.ExamSession) {
	s.teardown.Register(attemptID, "violation-classifier", func() { s.classifiers.Release(attemptID) })
	if session != nil && session.ID != 0 && session.CameraRequired {
		sessionID := session.ID
		s.teardown.BindSession(attemptID, sessionID, func(ctx context.Context) error {
			return s.sessionRepo.DisableCamera(ctx, sessionID)
		})
	}
}

func (s *attemptLifecycleService) handleTick(attemptID uint, secondsRemaining int) {
	if s.notifier != nil {
		s.notifier.NotifyTick(attemptID, secondsRemaining)
	}
}

func (s *attemptLifecycleService) handleSync(attemptID uint, secondsRemaining int) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Proctor.SyncTimeout)
	defer cancel()
	if err := s.attemptRepo.SaveTimerSnapshot(ctx, attemptID, secondsRemaining); err != nil {
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("Timer checkpoint write failed")
	}
}

// handleExpiry fires exactly once per attempt, from the engine. The local
// transition stands even when the persistence write fails: a student is
// never trapped in expired-but-not-submitted limbo.
func (s *attemptLifecycleService) handleExpiry(attemptID uint) {
	log.Info().Uint("attemptID", attemptID).Msg("Attempt timer expired, submitting")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transitioned, err := s.attemptRepo.TransitionToSubmitted(ctx, attemptID)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Expiry persistence failed, will reconcile on next read")
	} else if !transitioned {
		log.Debug().Uint("attemptID", attemptID).Msg("Attempt already terminal at expiry")
	}
	s.finalize(ctx, attemptID, model.AttemptSubmitted)
}

// finalize tears down everything attached to a terminal attempt. Watching
// clients are notified before their sockets are released.
func (s *attemptLifecycleService) finalize(ctx context.Context, attemptID uint, status model.AttemptStatus) {
	if s.notifier != nil {
		s.notifier.NotifyStatus(attemptID, status)
	}
	s.engines.Remove(attemptID)
	s.classifiers.Release(attemptID)
	s.teardown.ForceTeardown(ctx, attemptID)
	if err := s.presence.Clear(ctx, attemptID); err != nil {
		log.Debug().Err(err).Uint("attemptID", attemptID).Msg("Presence clear failed")
	}
}
