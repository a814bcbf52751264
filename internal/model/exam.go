package model

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Title           string         `json:"title" gorm:"not null;uniqueIndex"` // "Algorithms Midterm"
	Description     string         `json:"description,omitempty"`
	DurationMinutes int            `json:"duration_minutes" gorm:"not null"`
	ResultsReleased bool           `json:"results_released" gorm:"default:false"`
	Sessions        []ExamSession  `json:"sessions,omitempty" gorm:"foreignKey:ExamID"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// DurationSeconds is the full time allowance granted to a fresh attempt.
func (e *Exam) DurationSeconds() int {
	return e.DurationMinutes * 60
}
