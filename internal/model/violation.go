package model

import (
	"time"

	"gorm.io/gorm"
)

type ViolationType string

const (
	ViolationTabSwitch     ViolationType = "tab_switch"
	ViolationWindowBlur    ViolationType = "window_blur"
	ViolationCopyPaste     ViolationType = "copy_paste_attempt"
	ViolationDevTools      ViolationType = "developer_tools_attempt"
	ViolationScreenshot    ViolationType = "screenshot_attempt"
	ViolationRightClick    ViolationType = "right_click_attempt"
	ViolationTextSelection ViolationType = "text_selection"
	ViolationWindowResize  ViolationType = "window_resize"
	ViolationManualFlag    ViolationType = "manual_flag"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ViolationEvent is one classified integrity incident on an attempt.
// EventUID makes persistence idempotent: the reporter may deliver the same
// event twice after a retry and the second write is silently absorbed.
type ViolationEvent struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	EventUID   string         `json:"event_uid" gorm:"type:varchar(64);not null;uniqueIndex"`
	AttemptID  uint           `json:"attempt_id" gorm:"not null;index"`
	Type       ViolationType  `json:"type" gorm:"type:varchar(40);not null;index"`
	Severity   Severity       `json:"severity" gorm:"type:varchar(10);not null"`
	Details    string         `json:"details,omitempty" gorm:"type:jsonb;default:'{}'"`
	DetectedAt time.Time      `json:"detected_at" gorm:"not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}
