package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lshigami/Margays/internal/model"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(attempt *model.ExamAttempt) error
	FindByID(id uint) (*model.ExamAttempt, error)
	FindByIDWithSession(id uint) (*model.ExamAttempt, error)
	FindByIdentity(studentID, examID, sessionID uint) (*model.ExamAttempt, error)
	FindAllInProgress() ([]model.ExamAttempt, error)

	// FetchTimer reads the authoritative pair (seconds remaining, server time)
	// in a single round trip. The database clock is the only clock consulted.
	FetchTimer(ctx context.Context, id uint) (int, time.Time, error)

	SaveTimerSnapshot(ctx context.Context, id uint, secondsRemaining int) error
	TouchActivity(ctx context.Context, id uint, at time.Time) error

	// TransitionToSubmitted performs the guarded in_progress -> submitted
	// write. It reports false when the attempt was already terminal, which the
	// caller must treat as "someone else got there first", not as an error.
	TransitionToSubmitted(ctx context.Context, id uint) (bool, error)

	Pause(ctx context.Context, id uint, reason string, secondsRemaining int) (bool, error)
	Unpause(ctx context.Context, id uint) (bool, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(attempt *model.ExamAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *attemptRepository) FindByID(id uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	if err := r.db.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByIDWithSession(id uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	if err := r.db.Preload("Session").Preload("Exam").First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindByIdentity(studentID, examID, sessionID uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.db.
		Where("student_id = ? AND exam_id = ? AND session_id = ?", studentID, examID, sessionID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) FindAllInProgress() ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	if err := r.db.Preload("Session").Where("status = ?", model.AttemptInProgress).Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *attemptRepository) FetchTimer(ctx context.Context, id uint) (int, time.Time, error) {
	var secondsRemaining int
	var serverTime time.Time
	// While in_progress and running, remaining time is the stored snapshot
	// minus the seconds elapsed since it was taken. Paused and terminal
	// attempts report the frozen snapshot.
	row := r.db.WithContext(ctx).Raw(`
		SELECT
			CASE
				WHEN status <> 'in_progress' OR is_paused
					THEN GREATEST(time_remaining, 0)
				ELSE GREATEST(time_remaining - CAST(EXTRACT(EPOCH FROM (now() - timer_synced_at)) AS INTEGER), 0)
			END,
			now()
		FROM exam_attempts
		WHERE id = ? AND deleted_at IS NULL`, id).Row()
	if err := row.Scan(&secondsRemaining, &serverTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, gorm.ErrRecordNotFound
		}
		return 0, time.Time{}, err
	}
	return secondsRemaining, serverTime, nil
}

func (r *attemptRepository) SaveTimerSnapshot(ctx context.Context, id uint, secondsRemaining int) error {
	return r.db.WithContext(ctx).
		Model(&model.ExamAttempt{}).
		Where("id = ? AND status = ?", id, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"time_remaining":  secondsRemaining,
			"timer_synced_at": gorm.Expr("now()"),
		}).Error
}

func (r *attemptRepository) TouchActivity(ctx context.Context, id uint, at time.Time) error {
	// Last-write-wins is fine for the heartbeat; skip hooks and updated_at.
	return r.db.WithContext(ctx).
		Model(&model.ExamAttempt{}).
		Where("id = ?", id).
		UpdateColumn("last_activity_at", at).Error
}

func (r *attemptRepository) TransitionToSubmitted(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ExamAttempt{}).
		Where("id = ? AND status = ?", id, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":          model.AttemptSubmitted,
			"submitted_at":    gorm.Expr("now()"),
			"time_remaining":  gorm.Expr("GREATEST(CASE WHEN is_paused THEN time_remaining ELSE time_remaining - CAST(EXTRACT(EPOCH FROM (now() - timer_synced_at)) AS INTEGER) END, 0)"),
			"timer_synced_at": gorm.Expr("now()"),
			"is_paused":       false,
			"pause_reason":    "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *attemptRepository) Pause(ctx context.Context, id uint, reason string, secondsRemaining int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.ExamAttempt{}).
		Where("id = ? AND status = ? AND is_paused = false", id, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"is_paused":       true,
			"pause_reason":    reason,
			"time_remaining":  secondsRemaining,
			"timer_synced_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *attemptRepository) Unpause(ctx context.Context, id uint) (bool, error) {
	// timer_synced_at moves to now so the paused interval is never deducted.
	res := r.db.WithContext(ctx).
		Model(&model.ExamAttempt{}).
		Where("id = ? AND status = ? AND is_paused = true", id, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"is_paused":       false,
			"pause_reason":    "",
			"timer_synced_at": gorm.Expr("now()"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
