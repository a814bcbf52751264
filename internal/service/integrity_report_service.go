package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/lshigami/Margays/config"
	"github.com/lshigami/Margays/internal/dto"
	"github.com/lshigami/Margays/internal/model"
	"github.com/lshigami/Margays/internal/repository"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// IntegrityReportService summarizes an attempt's incident history for the
// proctor, with an optional AI-written assessment when a Gemini key is
// configured. Without one the service degrades to the counts-only summary.
type IntegrityReportService interface {
	Report(ctx context.Context, attemptID uint) (*dto.IntegrityReportResponse, error)
}

type integrityReportService struct {
	client        *genai.GenerativeModel
	attemptRepo   repository.AttemptRepository
	violationRepo repository.ViolationRepository
}

func NewIntegrityReportService(
	cfg *config.Config,
	attemptRepo repository.AttemptRepository,
	violationRepo repository.ViolationRepository,
) (IntegrityReportService, error) {
	svc := &integrityReportService{attemptRepo: attemptRepo, violationRepo: violationRepo}
	if cfg.GeminiApiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set. Integrity reports will not include an AI assessment.")
		return svc, nil
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiApiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	svc.client = client.GenerativeModel("gemini-1.5-flash")
	return svc, nil
}

func (s *integrityReportService) Report(ctx context.Context, attemptID uint) (*dto.IntegrityReportResponse, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	events, err := s.violationRepo.FindByAttemptID(attemptID)
	if err != nil {
		return nil, err
	}

	report := &dto.IntegrityReportResponse{
		AttemptID:   attemptID,
		GeneratedAt: time.Now(),
		Summary:     summarizeViolations(events),
	}
	if s.client == nil || len(events) == 0 {
		return report, nil
	}

	assessment, err := s.assess(ctx, attempt, events)
	if err != nil {
		// The counts are still worth returning without the narrative.
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("AI assessment unavailable")
		return report, nil
	}
	report.Assessment = assessment
	return report, nil
}

func (s *integrityReportService) assess(ctx context.Context, attempt *model.ExamAttempt, events []model.ViolationEvent) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("You are reviewing the integrity log of a proctored online exam attempt.\n")
	prompt.WriteString("Classify how likely it is that the student deliberately attempted to cheat, as one of: low, moderate, high.\n")
	prompt.WriteString("Then justify the classification in two to four sentences, citing the specific events.\n\n")
	prompt.WriteString(fmt.Sprintf("Attempt started at %s.\n", attempt.StartedAt.Format(time.RFC3339)))
	if attempt.SubmittedAt != nil {
		prompt.WriteString(fmt.Sprintf("Attempt submitted at %s.\n", attempt.SubmittedAt.Format(time.RFC3339)))
	}
	prompt.WriteString("\nRecorded events, oldest first:\n")
	for _, event := range events {
		offset := event.DetectedAt.Sub(attempt.StartedAt).Round(time.Second)
		prompt.WriteString(fmt.Sprintf("- %s after start: %s (severity %s)\n", offset, event.Type, event.Severity))
	}
	prompt.WriteString("\nFormat your response strictly as:\n")
	prompt.WriteString("Likelihood: [low|moderate|high]\n")
	prompt.WriteString("Assessment: [your justification]\n")

	resp, err := s.client.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text content")
	}
	return strings.TrimSpace(out.String()), nil
}
