package model

import (
	"time"

	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionActive    SessionStatus = "active"
	SessionClosed    SessionStatus = "closed"
)

// ExamSession is one proctored sitting of an exam. Attempts may only be
// started while the session window is open.
type ExamSession struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	ExamID         uint           `json:"exam_id" gorm:"not null;index"`
	Exam           Exam           `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Status         SessionStatus  `json:"status" gorm:"type:varchar(20);default:'scheduled'"`
	StartsAt       time.Time      `json:"starts_at" gorm:"not null"`
	EndsAt         time.Time      `json:"ends_at" gorm:"not null"`
	CameraRequired bool           `json:"camera_required" gorm:"default:false"`
	CameraDisabled bool           `json:"camera_disabled" gorm:"default:false"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsOpenAt reports whether new attempts are admitted at the given instant.
// A closed session rejects entrants even inside its scheduled window.
func (s *ExamSession) IsOpenAt(t time.Time) bool {
	if s.Status == SessionClosed {
		return false
	}
	return !t.Before(s.StartsAt) && t.Before(s.EndsAt)
}
