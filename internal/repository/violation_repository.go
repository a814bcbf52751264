package repository

import (
	"context"
	"errors"

	"github.com/lshigami/Margays/internal/model"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ViolationRepository is append-only. Events are never updated or deleted
// here; retention is an external policy.
type ViolationRepository interface {
	Append(ctx context.Context, event *model.ViolationEvent) error
	FindByAttemptID(attemptID uint) ([]model.ViolationEvent, error)
	CountByType(attemptID uint) (map[model.ViolationType]int, error)
}

type violationRepository struct {
	db *gorm.DB
}

func NewViolationRepository(db *gorm.DB) ViolationRepository {
	return &violationRepository{db: db}
}

func (r *violationRepository) Append(ctx context.Context, event *model.ViolationEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A retried delivery of an event we already hold. Not a failure.
		log.Debug().Str("eventUID", event.EventUID).Uint("attemptID", event.AttemptID).Msg("Duplicate violation event absorbed")
		return nil
	}
	return err
}

func (r *violationRepository) FindByAttemptID(attemptID uint) ([]model.ViolationEvent, error) {
	var events []model.ViolationEvent
	err := r.db.
		Where("attempt_id = ?", attemptID).
		Order("detected_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *violationRepository) CountByType(attemptID uint) (map[model.ViolationType]int, error) {
	var rows []struct {
		Type  model.ViolationType
		Count int
	}
	err := r.db.Model(&model.ViolationEvent{}).
		Select("type, COUNT(*) AS count").
		Where("attempt_id = ?", attemptID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.ViolationType]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
