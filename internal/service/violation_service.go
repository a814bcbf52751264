package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ViolationService takes raw browser signals through classification and into
// the incident pipeline. The acknowledgement returned to the client reflects
// the classification only; persistence happens behind it and its failure is
// never visible here.
type ViolationService interface {
	ReportSignal(ctx context.Context, attemptID uint, req dto.RawSignalRequest) (*dto.ViolationAckResponse, error)
	FlagManually(ctx context.Context, attemptID uint, reason string) (*dto.ViolationEventResponse, error)
	ListViolations(attemptID uint) ([]dto.ViolationEventResponse, error)
	Heartbeat(attemptID uint, pageURL string) error
}

type violationService struct {
	attemptRepo   repository.AttemptRepository
	violationRepo repository.ViolationRepository
	classifiers   *ClassifierRegistry
	reporter      IncidentReporter
	notifier      AttemptNotifier
}

func NewViolationService(
	attemptRepo repository.AttemptRepository,
	violationRepo repository.ViolationRepository,
	classifiers *ClassifierRegistry,
	reporter IncidentReporter,
	notifier AttemptNotifier,
) ViolationService {
	return &violationService{
		attemptRepo:   attemptRepo,
		violationRepo: violationRepo,
		classifiers:   classifiers,
		reporter:      reporter,
		notifier:      notifier,
	}
}

type signalPayload struct {
	Kind         string                 `json:"kind"`
	PageURL      string                 `json:"page_url,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	CapturedText string                 `json:"captured_text,omitempty"`
	Client       map[string]interface{} `json:"client,omitempty"`
}

func (s *violationService) ReportSignal(ctx context.Context, attemptID uint, req dto.RawSignalRequest) (*dto.ViolationAckResponse, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.IsTerminal() {
		return nil, &ConflictError{Reason: fmt.Sprintf("attempt is already %s", attempt.Status)}
	}

	detectedAt := time.Now()
	if req.DetectedAt != nil && !req.DetectedAt.IsZero() {
		detectedAt = *req.DetectedAt
	}

	// Every signal is presence, whatever the classifier makes of it.
	s.reporter.TouchActivity(attemptID, time.Now())

	violation := s.classifiers.For(attemptID).Classify(RawSignal{
		Kind:         SignalKind(req.Kind),
		DetectedAt:   detectedAt,
		SelectedText: req.SelectedText,
	})
	if violation == nil {
		return &dto.ViolationAckResponse{EventUID: req.EventUID, Counted: false}, nil
	}

	eventUID := req.EventUID
	if eventUID == "" {
		eventUID = uuid.NewString()
	}
	event := &model.ViolationEvent{
		EventUID:  eventUID,
		AttemptID: attemptID,
		Type:      violation.Type,
		Severity:  violation.Severity,
		Details: detailsJSON(signalPayload{
			Kind:         req.Kind,
			PageURL:      req.PageURL,
			UserAgent:    req.UserAgent,
			CapturedText: violation.CapturedText,
			Client:       req.Details,
		}),
		DetectedAt: detectedAt,
	}
	s.reporter.Report(event)

	ack := &dto.ViolationAckResponse{
		EventUID: eventUID,
		Type:     string(violation.Type),
		Severity: string(violation.Severity),
		Counted:  true,
		Count:    violation.Count,
		Warning:  warningText(violation),
	}
	if s.notifier != nil {
		s.notifier.NotifyViolation(attemptID, *ack)
	}
	return ack, nil
}

// FlagManually records a proctor-raised critical incident. Unlike browser
// signals this write is synchronous: the proctor deserves to know it landed.
func (s *violationService) FlagManually(ctx context.Context, attemptID uint, reason string) (*dto.ViolationEventResponse, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	event := &model.ViolationEvent{
		EventUID:   uuid.NewString(),
		AttemptID:  attempt.ID,
		Type:       model.ViolationManualFlag,
		Severity:   model.SeverityCritical,
		Details:    detailsJSON(map[string]string{"reason": reason}),
		DetectedAt: time.Now(),
	}
	if err := s.violationRepo.Append(ctx, event); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyViolation(attemptID, dto.ViolationAckResponse{
			EventUID: event.EventUID,
			Type:     string(event.Type),
			Severity: string(event.Severity),
			Counted:  true,
			Warning:  "This attempt has been flagged by a proctor.",
		})
	}
	log.Info().Uint("attemptID", attemptID).Str("reason", reason).Msg("Attempt flagged manually")

	var resp dto.ViolationEventResponse
	if err := copier.Copy(&resp, event); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *violationService) ListViolations(attemptID uint) ([]dto.ViolationEventResponse, error) {
	if _, err := s.attemptRepo.FindByID(attemptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	events, err := s.violationRepo.FindByAttemptID(attemptID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ViolationEventResponse, 0, len(events))
	if err := copier.Copy(&responses, &events); err != nil {
		return nil, err
	}
	return responses, nil
}

// Heartbeat refreshes last-seen without carrying any violation meaning.
func (s *violationService) Heartbeat(attemptID uint, pageURL string) error {
	if _, err := s.attemptRepo.FindByID(attemptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAttemptNotFound
		}
		return err
	}
	s.reporter.TouchActivity(attemptID, time.Now())
	if pageURL != "" {
		log.Debug().Uint("attemptID", attemptID).Str("page", pageURL).Msg("Heartbeat")
	}
	return nil
}

func warningText(v *ClassifiedViolation) string {
	switch v.Severity {
	case model.SeverityCritical:
		return "This attempt has been flagged for review."
	case model.SeverityHigh:
		return fmt.Sprintf("Serious violation recorded (%s). Further violations may void this attempt.", v.Type)
	case model.SeverityMedium:
		return fmt.Sprintf("Repeated violation recorded (%s). This attempt is being monitored.", v.Type)
	default:
		return fmt.Sprintf("Violation recorded (%s).", v.Type)
	}
}

func detailsJSON(payload interface{}) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func summarizeViolations(events []model.ViolationEvent) dto.ViolationSummaryResponse {
	summary := dto.ViolationSummaryResponse{ByType: make(map[string]int)}
	highest := -1
	for _, event := range events {
		summary.Total++
		summary.ByType[string(event.Type)]++
		if rank := severityRank(event.Severity); rank > highest {
			highest = rank
			summary.HighestSeverity = string(event.Severity)
		}
	}
	return summary
}

func severityRank(severity model.Severity) int {
	switch severity {
	case model.SeverityLow:
		return 0
	case model.SeverityMedium:
		return 1
	case model.SeverityHigh:
		return 2
	case model.SeverityCritical:
		return 3
	}
	return -1
}
