package dto

import "time"

// StartAttemptRequest opens an attempt inside a session window.
type StartAttemptRequest struct {
	StudentID uint `json:"student_id" binding:"required"`
	ExamID    uint `json:"exam_id" binding:"required"`
}

// RawSignalRequest is one untrusted browser observation. Kinds are named after
// the event that produced them, not the violation they may become; the
// classifier owns that mapping.
type RawSignalRequest struct {
	EventUID     string                 `json:"event_uid"` // client-generated; server assigns one when absent
	Kind         string                 `json:"kind" binding:"required,oneof=visibility_hidden window_blur copy_key_combo devtools_key_combo print_screen_key context_menu text_selection viewport_resize mouse_activity"`
	DetectedAt   *time.Time             `json:"detected_at"`
	SelectedText string                 `json:"selected_text,omitempty"`
	PageURL      string                 `json:"page_url,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// HeartbeatRequest optionally names the page the student currently has open.
type HeartbeatRequest struct {
	PageURL string `json:"page_url,omitempty"`
}

type PauseAttemptRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type FlagAttemptRequest struct {
	Reason string `json:"reason" binding:"required"`
}
