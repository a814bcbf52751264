package dto

import "time"

type AttemptStateResponse struct {
	ID               uint       `json:"id"`
	StudentID        uint       `json:"student_id"`
	ExamID           uint       `json:"exam_id"`
	SessionID        uint       `json:"session_id"`
	Status           string     `json:"status"`
	SecondsRemaining int        `json:"seconds_remaining"`
	IsPaused         bool       `json:"is_paused"`
	PauseReason      string     `json:"pause_reason,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	LastActivityAt   time.Time  `json:"last_activity_at"`
}

type TimerSnapshotResponse struct {
	SecondsRemaining int       `json:"seconds_remaining"`
	AsOf             time.Time `json:"as_of"`
}

// ViolationAckResponse is returned to the client for every accepted signal,
// whether or not the incident write has landed yet. Warning carries the
// banner text the exam UI shows the student.
type ViolationAckResponse struct {
	EventUID string `json:"event_uid"`
	Type     string `json:"type,omitempty"`
	Severity string `json:"severity,omitempty"`
	Counted  bool   `json:"counted"`
	Count    int    `json:"count,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

type ViolationEventResponse struct {
	ID         uint      `json:"id"`
	EventUID   string    `json:"event_uid"`
	AttemptID  uint      `json:"attempt_id"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Details    string    `json:"details,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

type ViolationSummaryResponse struct {
	Total           int            `json:"total"`
	ByType          map[string]int `json:"by_type,omitempty"`
	HighestSeverity string         `json:"highest_severity,omitempty"`
}

// AttemptResultResponse gates raw results behind the exam's release flag.
// Outcome is "pending" until results are released, then "released" with the
// integrity summary attached.
type AttemptResultResponse struct {
	AttemptID   uint                      `json:"attempt_id"`
	Status      string                    `json:"status"`
	Outcome     string                    `json:"outcome"`
	SubmittedAt *time.Time                `json:"submitted_at,omitempty"`
	SecondsUsed int                       `json:"seconds_used,omitempty"`
	Violations  *ViolationSummaryResponse `json:"violations,omitempty"`
}

type IntegrityReportResponse struct {
	AttemptID   uint                     `json:"attempt_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Summary     ViolationSummaryResponse `json:"summary"`
	Assessment  string                   `json:"assessment,omitempty"` // empty when the AI reviewer is not configured
}

// PresenceResponse tells a proctor dashboard whether the student's client has
// reported activity recently. Online is false once the presence TTL lapses.
type PresenceResponse struct {
	AttemptID uint       `json:"attempt_id"`
	Online    bool       `json:"online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
