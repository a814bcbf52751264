package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lshigami/Margays/internal/model"
)

// lifecycleFixture wires the lifecycle service to in-memory fakes plus the
// real countdown, classifier and teardown components. The hour-long tick
// interval keeps every engine inert unless a test steps it by hand.
type lifecycleFixture struct {
	attemptRepo   *fakeAttemptRepo
	examRepo      *fakeExamRepo
	sessionRepo   *fakeSessionRepo
	violationRepo *fakeViolationRepo
	sync          *fakeTimerSync
	engines       *CountdownManager
	classifiers   *ClassifierRegistry
	teardown      *TeardownRegistry
	locker        *fakeStartLocker
	reporter      *fakeReporter
	presence      *fakePresenceStore
	notifier      *fakeNotifier
	service       AttemptLifecycleService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		attemptRepo:   newFakeAttemptRepo(),
		examRepo:      newFakeExamRepo(),
		sessionRepo:   newFakeSessionRepo(),
		violationRepo: newFakeViolationRepo(),
		sync:          newFakeTimerSync(),
		engines:       NewCountdownManager(),
		classifiers:   NewClassifierRegistry(3 * time.Second),
		teardown:      NewTeardownRegistry(),
		locker:        &fakeStartLocker{},
		reporter:      &fakeReporter{},
		presence:      newFakePresenceStore(),
		notifier:      &fakeNotifier{},
	}
	f.service = NewAttemptLifecycleService(
		newTestConfig(),
		f.attemptRepo,
		f.examRepo,
		f.sessionRepo,
		f.violationRepo,
		f.sync,
		f.engines,
		f.classifiers,
		f.teardown,
		f.locker,
		f.reporter,
		f.presence,
		f.notifier,
	)
	return f
}

// seedExamAndSession installs a 30-minute exam inside an open active session.
func (f *lifecycleFixture) seedExamAndSession() *model.ExamSession {
	f.examRepo.put(&model.Exam{ID: 1, Title: "Algorithms Midterm", DurationMinutes: 30})
	now := time.Now()
	return f.sessionRepo.put(&model.ExamSession{
		ID:       1,
		ExamID:   1,
		Status:   model.SessionActive,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(2 * time.Hour),
	})
}

func TestAttemptLifecycleService_Start_CreatesAttemptWithFullAllowance(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.sync.set(1, 1800)

	attempt, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt.Status != model.AttemptInProgress {
		t.Errorf("got status %q, want %q", attempt.Status, model.AttemptInProgress)
	}
	if attempt.TimeRemaining != 1800 {
		t.Errorf("got %d seconds remaining, want 1800", attempt.TimeRemaining)
	}

	engine, ok := f.engines.Get(attempt.ID)
	if !ok {
		t.Fatal("no countdown engine armed for the new attempt")
	}
	if engine.State() != EngineTicking {
		t.Errorf("engine in state %v, want %v", engine.State(), EngineTicking)
	}
	if engine.Remaining() != 1800 {
		t.Errorf("engine holds %d seconds, want 1800", engine.Remaining())
	}
	if f.locker.acquired != 1 || f.locker.released != 1 {
		t.Errorf("start lock acquired %d times and released %d times", f.locker.acquired, f.locker.released)
	}
}

func TestAttemptLifecycleService_Start_AdoptsExistingInProgress(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.sync.set(1, 1800)

	first, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	second, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second start produced attempt %d, want %d", second.ID, first.ID)
	}
	if f.locker.acquired != 1 {
		t.Errorf("adopting an existing attempt took the start lock %d extra times", f.locker.acquired-1)
	}
}

func TestAttemptLifecycleService_Start_RejectsTerminalAttempt(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{StudentID: 10, ExamID: 1, SessionID: 1, Status: model.AttemptSubmitted})

	_, err := f.service.Start(context.Background(), 1, 10, 1)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}
}

func TestAttemptLifecycleService_Start_RejectsClosedWindow(t *testing.T) {
	f := newLifecycleFixture()
	session := f.seedExamAndSession()
	session.Status = model.SessionClosed
	f.sessionRepo.put(session)

	_, err := f.service.Start(context.Background(), 1, 10, 1)
	if !errors.Is(err, ErrSessionWindowClosed) {
		t.Fatalf("expected ErrSessionWindowClosed, got %v", err)
	}
}

func TestAttemptLifecycleService_Start_RejectsMismatchedExam(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()

	_, err := f.service.Start(context.Background(), 1, 10, 2)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}
}

func TestAttemptLifecycleService_Start_LockDenied_ReturnsConflict(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.locker.denied = true

	_, err := f.service.Start(context.Background(), 1, 10, 1)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict while another start holds the lock, got %v", err)
	}
}

func TestAttemptLifecycleService_Start_LockUnavailable_FallsBackToUniqueIndex(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.locker.err = errors.New("connection refused")
	f.sync.set(1, 1800)

	attempt, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("a broken lock backend must not block starts: %v", err)
	}
	if attempt.Status != model.AttemptInProgress {
		t.Errorf("got status %q, want %q", attempt.Status, model.AttemptInProgress)
	}
}

func TestAttemptLifecycleService_Submit_FinalizesExactlyOnce(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.sync.set(1, 1800)
	attempt, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	submitted, err := f.service.Submit(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submitted.Status != model.AttemptSubmitted {
		t.Errorf("got status %q, want %q", submitted.Status, model.AttemptSubmitted)
	}
	if submitted.SubmittedAt == nil {
		t.Error("submitted attempt carries no submission timestamp")
	}
	if _, ok := f.engines.Get(attempt.ID); ok {
		t.Error("countdown engine survived submission")
	}
	if frames := f.notifier.byKind("status"); len(frames) != 1 {
		t.Errorf("expected one status broadcast, got %d", len(frames))
	}

	_, err = f.service.Submit(context.Background(), attempt.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict on double submit, got %v", err)
	}
	if got := f.attemptRepo.transitionCount(); got != 1 {
		t.Errorf("attempt transitioned %d times, want 1", got)
	}
	if frames := f.notifier.byKind("status"); len(frames) != 1 {
		t.Errorf("double submit re-broadcast the terminal status: %d frames", len(frames))
	}
}

func TestAttemptLifecycleService_Expiry_AutoSubmitsOnce(t *testing.T) {
	f := newLifecycleFixture()
	session := f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{
		ID:            5,
		StudentID:     10,
		ExamID:        1,
		SessionID:     1,
		Session:       *session,
		Status:        model.AttemptInProgress,
		TimeRemaining: 0,
	})
	f.sync.set(5, 0)

	attempt, snapshot, err := f.service.Resume(context.Background(), 5)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if attempt.Status != model.AttemptSubmitted {
		t.Errorf("exhausted attempt came back as %q, want %q", attempt.Status, model.AttemptSubmitted)
	}
	if snapshot.SecondsRemaining != 0 {
		t.Errorf("got %d seconds remaining, want 0", snapshot.SecondsRemaining)
	}
	if got := f.attemptRepo.transitionCount(); got != 1 {
		t.Errorf("expiry transitioned the attempt %d times, want 1", got)
	}
	if _, ok := f.engines.Get(5); ok {
		t.Error("expired engine was not removed")
	}
	if frames := f.notifier.byKind("status"); len(frames) != 1 {
		t.Errorf("expected one status broadcast, got %d", len(frames))
	}
	if len(f.presence.cleared) != 1 || f.presence.cleared[0] != 5 {
		t.Errorf("presence was not cleared for the expired attempt: %v", f.presence.cleared)
	}
}

func TestAttemptLifecycleService_Resume_AdoptsServerClock(t *testing.T) {
	f := newLifecycleFixture()
	session := f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{
		ID:            5,
		StudentID:     10,
		ExamID:        1,
		SessionID:     1,
		Session:       *session,
		Status:        model.AttemptInProgress,
		TimeRemaining: 1200,
	})
	f.sync.set(5, 900)

	_, snapshot, err := f.service.Resume(context.Background(), 5)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if snapshot.SecondsRemaining != 900 {
		t.Errorf("got %d seconds, want the server's 900", snapshot.SecondsRemaining)
	}
	if f.reporter.touchCount() != 1 {
		t.Errorf("resume recorded %d activity touches, want 1", f.reporter.touchCount())
	}

	// A later resume resyncs the existing engine instead of building another.
	f.sync.set(5, 880)
	_, snapshot, err = f.service.Resume(context.Background(), 5)
	if err != nil {
		t.Fatalf("second resume failed: %v", err)
	}
	if snapshot.SecondsRemaining != 880 {
		t.Errorf("got %d seconds, want the corrected 880", snapshot.SecondsRemaining)
	}
}

func TestAttemptLifecycleService_Resume_RebuildsClassifierFromIncidentLog(t *testing.T) {
	f := newLifecycleFixture()
	session := f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{
		ID: 5, StudentID: 10, ExamID: 1, SessionID: 1, Session: *session,
		Status: model.AttemptInProgress, TimeRemaining: 900,
	})
	f.sync.set(5, 900)
	for i := 0; i < 4; i++ {
		f.violationRepo.Append(context.Background(), &model.ViolationEvent{
			EventUID:   fmt.Sprintf("uid-%d", i),
			AttemptID:  5,
			Type:       model.ViolationTabSwitch,
			Severity:   model.SeverityLow,
			DetectedAt: time.Now(),
		})
	}

	if _, _, err := f.service.Resume(context.Background(), 5); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if count := f.classifiers.For(5).Counters()[model.ViolationTabSwitch]; count != 4 {
		t.Errorf("classifier rebuilt with count %d, want 4", count)
	}
}

func TestAttemptLifecycleService_Resume_SyncFailureSurfacesAsSyncError(t *testing.T) {
	f := newLifecycleFixture()
	session := f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{
		ID: 5, StudentID: 10, ExamID: 1, SessionID: 1, Session: *session,
		Status: model.AttemptInProgress, TimeRemaining: 900,
	})
	f.sync.errFor[5] = errors.New("connection refused")

	_, _, err := f.service.Resume(context.Background(), 5)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected a *SyncError, got %v", err)
	}
	if _, ok := f.engines.Get(5); ok {
		t.Error("engine was armed despite the failed sync")
	}
}

func TestAttemptLifecycleService_Pause_FreezesCountdown(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.sync.set(1, 1800)
	attempt, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	paused, err := f.service.Pause(context.Background(), attempt.ID, "network check")
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if !paused.IsPaused || paused.PauseReason != "network check" {
		t.Errorf("pause state not recorded: paused=%v reason=%q", paused.IsPaused, paused.PauseReason)
	}
	if paused.TimeRemaining != 1800 {
		t.Errorf("frozen checkpoint holds %d seconds, want 1800", paused.TimeRemaining)
	}

	engine, _ := f.engines.Get(attempt.ID)
	engine.step()
	engine.step()
	if engine.Remaining() != 1800 {
		t.Errorf("paused countdown decremented to %d", engine.Remaining())
	}

	if _, err := f.service.Pause(context.Background(), attempt.ID, "again"); err == nil {
		t.Error("expected a conflict when pausing twice")
	}

	frames := f.notifier.byKind("pause")
	if len(frames) != 1 || !frames[0].paused || frames[0].reason != "network check" {
		t.Errorf("unexpected pause broadcasts: %+v", frames)
	}
}

func TestAttemptLifecycleService_Unpause_RestoresCountdown(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.sync.set(1, 1800)
	attempt, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := f.service.Pause(context.Background(), attempt.ID, "network check"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	resumed, err := f.service.Unpause(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("unpause failed: %v", err)
	}
	if resumed.IsPaused {
		t.Error("attempt still marked paused")
	}

	engine, _ := f.engines.Get(attempt.ID)
	if engine.State() != EngineTicking {
		t.Errorf("engine in state %v after unpause, want %v", engine.State(), EngineTicking)
	}
	engine.step()
	if engine.Remaining() != 1799 {
		t.Errorf("countdown resumed at %d, want 1799 after one step", engine.Remaining())
	}

	frames := f.notifier.byKind("pause")
	if len(frames) != 2 || frames[1].paused {
		t.Errorf("unexpected pause broadcasts: %+v", frames)
	}
}

func TestAttemptLifecycleService_Pause_TerminalAttemptConflicts(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{ID: 5, StudentID: 10, ExamID: 1, SessionID: 1, Status: model.AttemptSubmitted})

	_, err := f.service.Pause(context.Background(), 5, "any")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}
}

func TestAttemptLifecycleService_Result_GatedByReleaseFlag(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	submittedAt := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	f.attemptRepo.put(&model.ExamAttempt{
		ID: 5, StudentID: 10, ExamID: 1, SessionID: 1,
		Status: model.AttemptSubmitted, TimeRemaining: 600, SubmittedAt: &submittedAt,
	})
	f.violationRepo.Append(context.Background(), &model.ViolationEvent{
		EventUID: "uid-a", AttemptID: 5, Type: model.ViolationTabSwitch, Severity: model.SeverityLow, DetectedAt: time.Now(),
	})
	f.violationRepo.Append(context.Background(), &model.ViolationEvent{
		EventUID: "uid-b", AttemptID: 5, Type: model.ViolationDevTools, Severity: model.SeverityHigh, DetectedAt: time.Now(),
	})

	pending, err := f.service.Result(context.Background(), 5)
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	if pending.Outcome != "pending" {
		t.Errorf("got outcome %q before release, want %q", pending.Outcome, "pending")
	}
	if pending.Violations != nil || pending.SecondsUsed != 0 {
		t.Error("unreleased result leaked details")
	}

	f.examRepo.put(&model.Exam{ID: 1, Title: "Algorithms Midterm", DurationMinutes: 30, ResultsReleased: true})
	released, err := f.service.Result(context.Background(), 5)
	if err != nil {
		t.Fatalf("result failed after release: %v", err)
	}
	if released.Outcome != "released" {
		t.Errorf("got outcome %q, want %q", released.Outcome, "released")
	}
	if released.SecondsUsed != 1200 {
		t.Errorf("got %d seconds used, want 1200", released.SecondsUsed)
	}
	if released.Violations == nil {
		t.Fatal("released result carries no violation summary")
	}
	if released.Violations.Total != 2 {
		t.Errorf("summary counts %d events, want 2", released.Violations.Total)
	}
	if released.Violations.HighestSeverity != string(model.SeverityHigh) {
		t.Errorf("summary reports highest severity %q, want %q", released.Violations.HighestSeverity, model.SeverityHigh)
	}
}

func TestAttemptLifecycleService_Result_InProgressConflicts(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{ID: 5, StudentID: 10, ExamID: 1, SessionID: 1, Status: model.AttemptInProgress})

	_, err := f.service.Result(context.Background(), 5)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a conflict, got %v", err)
	}
}

func TestAttemptLifecycleService_RecoverActiveAttempts_SkipsFailedSync(t *testing.T) {
	f := newLifecycleFixture()
	session := f.seedExamAndSession()
	f.attemptRepo.put(&model.ExamAttempt{
		ID: 5, StudentID: 10, ExamID: 1, SessionID: 1, Session: *session,
		Status: model.AttemptInProgress, TimeRemaining: 300,
	})
	f.attemptRepo.put(&model.ExamAttempt{
		ID: 6, StudentID: 11, ExamID: 1, SessionID: 1, Session: *session,
		Status: model.AttemptInProgress, TimeRemaining: 500,
	})
	f.sync.set(5, 300)
	f.sync.errFor[6] = errors.New("connection refused")

	if err := f.service.RecoverActiveAttempts(); err != nil {
		t.Fatalf("recovery failed: %v", err)
	}

	engine, ok := f.engines.Get(5)
	if !ok {
		t.Fatal("attempt 5 was not re-armed")
	}
	if engine.Remaining() != 300 {
		t.Errorf("re-armed engine holds %d seconds, want 300", engine.Remaining())
	}
	if _, ok := f.engines.Get(6); ok {
		t.Error("attempt 6 was armed despite its failed sync")
	}
}

func TestAttemptLifecycleService_RemainingSeconds_PrefersLiveEngine(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.sync.set(1, 1800)
	attempt, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	f.sync.set(attempt.ID, 500)
	snapshot, err := f.service.RemainingSeconds(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("remaining seconds failed: %v", err)
	}
	if snapshot.SecondsRemaining != 1800 {
		t.Errorf("got %d seconds, want the engine's 1800", snapshot.SecondsRemaining)
	}

	// Without an engine the authoritative clock answers and re-arms one.
	f.engines.Remove(attempt.ID)
	snapshot, err = f.service.RemainingSeconds(context.Background(), attempt.ID)
	if err != nil {
		t.Fatalf("remaining seconds failed: %v", err)
	}
	if snapshot.SecondsRemaining != 500 {
		t.Errorf("got %d seconds, want the clock's 500", snapshot.SecondsRemaining)
	}
	if _, ok := f.engines.Get(attempt.ID); !ok {
		t.Error("fallback read did not re-arm the engine")
	}
}

func TestAttemptLifecycleService_Shutdown_StopsEnginesWithoutFinalizing(t *testing.T) {
	f := newLifecycleFixture()
	f.seedExamAndSession()
	f.sync.set(1, 1800)
	attempt, err := f.service.Start(context.Background(), 1, 10, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	f.service.Shutdown()

	if _, ok := f.engines.Get(attempt.ID); ok {
		t.Error("engines survived shutdown")
	}
	stored, _ := f.attemptRepo.FindByID(attempt.ID)
	if stored.Status != model.AttemptInProgress {
		t.Errorf("shutdown changed the attempt status to %q", stored.Status)
	}
	if frames := f.notifier.byKind("status"); len(frames) != 0 {
		t.Errorf("shutdown broadcast %d status frames", len(frames))
	}
}
