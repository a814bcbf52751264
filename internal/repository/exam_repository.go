package repository

import (
	"github.com/lshigami/Margays/internal/model"
	"gorm.io/gorm"
)

type ExamRepository interface {
	FindByID(id uint) (*model.Exam, error)
}

type examRepository struct {
	db *gorm.DB
}

func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) FindByID(id uint) (*model.Exam, error) {
	var exam model.Exam
	if err := r.db.First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}
