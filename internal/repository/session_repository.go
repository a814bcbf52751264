package repository

import (
	"context"

	"github.com/lshigami/Margays/internal/model"
	"gorm.io/gorm"
)

type SessionRepository interface {
	FindByID(id uint) (*model.ExamSession, error)
	DisableCamera(ctx context.Context, id uint) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) FindByID(id uint) (*model.ExamSession, error) {
	var session model.ExamSession
	if err := r.db.First(&session, id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) DisableCamera(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.ExamSession{}).
		Where("id = ?", id).
		Update("camera_disabled", true).Error
}
