package model

import (
	"time"

	"gorm.io/gorm"
)

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// ExamAttempt is one student's run at a proctored exam. The server copy of
// the countdown is authoritative: TimeRemaining paired with TimerSyncedAt is
// enough to reconstruct the live value after any restart or reconnect.
type ExamAttempt struct {
	ID        uint `gorm:"primarykey" json:"id"`
	StudentID uint `json:"student_id" gorm:"not null;uniqueIndex:idx_attempt_identity"`
	ExamID    uint `json:"exam_id" gorm:"not null;uniqueIndex:idx_attempt_identity"`
	SessionID uint `json:"session_id" gorm:"not null;uniqueIndex:idx_attempt_identity"`

	Exam    Exam        `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Session ExamSession `json:"session,omitempty" gorm:"foreignKey:SessionID"`

	Status        AttemptStatus `json:"status" gorm:"type:varchar(20);default:'in_progress';index"`
	TimeRemaining int           `json:"time_remaining" gorm:"not null"` // seconds left as of TimerSyncedAt
	TimerSyncedAt time.Time     `json:"timer_synced_at"`

	IsPaused    bool   `json:"is_paused" gorm:"default:false"`
	PauseReason string `json:"pause_reason,omitempty"`

	StartedAt      time.Time  `json:"started_at"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	LastActivityAt time.Time  `json:"last_activity_at"`

	Violations []ViolationEvent `json:"violations,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsTerminal reports whether the attempt can never return to in_progress.
func (a *ExamAttempt) IsTerminal() bool {
	return a.Status == AttemptCompleted || a.Status == AttemptSubmitted
}
