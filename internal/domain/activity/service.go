package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/repository"
)

// DefaultListLimit caps listings that do not set a limit.
const DefaultListLimit = 50

// Service handles activity log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry == nil || entry.EventID == "" || entry.ActivityType == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// GetRecentActivity lists activity entries with filtering, newest first.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListActivityOptions) ([]ActivityEntry, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	return s.repo.List(ctx, opts)
}

// Name identifies the service as an event subscriber.
func (s *Service) Name() string {
	return "activity"
}

// HandleEvent records a ledger event. Redelivered events are ignored.
func (s *Service) HandleEvent(ctx context.Context, ev ledger.Event) error {
	entry, err := entryFromEvent(ev)
	if err != nil {
		return err
	}
	if err := s.LogActivity(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Debug("duplicate activity event", "event_id", ev.ID)
			return nil
		}
		return err
	}
	return nil
}

func entryFromEvent(ev ledger.Event) (*ActivityEntry, error) {
	details, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding event details: %w", err)
	}

	entry := &ActivityEntry{
		EventID:      ev.ID,
		RecordID:     ev.RecordID,
		Actor:        ev.Actor,
		Counterparty: ev.Counterparty,
		Details:      string(details),
		CreatedAt:    ev.Timestamp,
	}
	switch ev.Type {
	case ledger.EventRegistered:
		entry.ActivityType = TypeRecordMinted
		entry.Summary = fmt.Sprintf("%s minted record %d", ev.Actor, ev.RecordID)
	case ledger.EventVerified:
		entry.ActivityType = TypeRecordVerified
		entry.Summary = fmt.Sprintf("%s verified record %d (%d verifications)", ev.Actor, ev.RecordID, ev.VerificationCount)
	case ledger.EventTransferred:
		entry.ActivityType = TypeRecordTransferred
		entry.Summary = fmt.Sprintf("record %d transferred from %s to %s", ev.RecordID, ev.Actor, ev.Counterparty)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, ev.Type)
	}
	return entry, nil
}
