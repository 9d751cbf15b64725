// Package complaint records viewer reports against chat messages and hides
// messages once their accumulated report weight crosses the threshold.
package complaint

import (
	"context"
	"identityradio/backend/internal/analysis"
	"identityradio/backend/internal/models"
	"log"
)

// ErrAlreadyReported is returned when the reporter already reported the message.
var ErrAlreadyReported = models.ErrAlreadyReported

// Store is the part of storage the complaint service needs.
type Store interface {
	CreateReport(ctx context.Context, report *models.MessageReport) (int, error)
	HasReported(ctx context.Context, messageID, reporterID string) (bool, error)
	HideMessage(ctx context.Context, id string) error
}

// Service handles the business logic for reports.
type Service struct {
	Storage Store
}

// NewService creates a new complaint service.
func NewService(s Store) *Service {
	return &Service{Storage: s}
}

// HandleReport weighs and saves the report, then hides the message if the
// threshold is reached. It reports whether the message was hidden.
func (s *Service) HandleReport(ctx context.Context, report *models.MessageReport) (bool, error) {
	reported, err := s.Storage.HasReported(ctx, report.MessageID, report.ReporterID)
	if err != nil {
		return false, err
	}
	if reported {
		return false, ErrAlreadyReported
	}

	report.Reason = analysis.NormalizeReason(report.Reason)
	report.Weight = analysis.GetWeight(report.Reason)

	total, err := s.Storage.CreateReport(ctx, report)
	if err != nil {
		return false, err
	}

	if !analysis.ShouldHide(total) {
		return false, nil
	}
	if err := s.Storage.HideMessage(ctx, report.MessageID); err != nil {
		return false, err
	}
	log.Printf("INFO: Message %s hidden after reports (weight %d)", report.MessageID, total)
	return true, nil
}
