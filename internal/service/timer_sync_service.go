package service

import (
	"context"
	"errors"
	"time"

	"github.com/lshigami/Margays/config"
	"github.com/lshigami/Margays/internal/repository"
	"gorm.io/gorm"
)

// TimerSnapshot is the unit exchanged between clock reconciliation and the
// countdown engine. SecondsRemaining is always derived from the database
// clock, never from the local one.
type TimerSnapshot struct {
	SecondsRemaining int
	AsOf             time.Time
}

type TimerSyncService interface {
	Sync(ctx context.Context, attemptID uint) (TimerSnapshot, error)
}

type timerSyncService struct {
	attemptRepo repository.AttemptRepository
	timeout     time.Duration
}

func NewTimerSyncService(cfg *config.Config, attemptRepo repository.AttemptRepository) TimerSyncService {
	return &timerSyncService{
		attemptRepo: attemptRepo,
		timeout:     cfg.Proctor.SyncTimeout,
	}
}

// Sync performs exactly one bounded round trip against the system of record.
// Every failure comes back as *SyncError so an unreachable timer source can
// never be mistaken for an expired timer.
func (s *timerSyncService) Sync(ctx context.Context, attemptID uint) (TimerSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	seconds, asOf, err := s.attemptRepo.FetchTimer(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TimerSnapshot{}, &SyncError{AttemptID: attemptID, Err: ErrAttemptNotFound}
		}
		return TimerSnapshot{}, &SyncError{AttemptID: attemptID, Err: err}
	}
	if seconds < 0 {
		seconds = 0
	}
	return TimerSnapshot{SecondsRemaining: seconds, AsOf: asOf}, nil
}
