package activity_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
	"github.com/sonetyo/ledger/internal/repository"
	"github.com/sonetyo/ledger/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		EventID:      "evt-1",
		RecordID:     0,
		Actor:        "alice",
		ActivityType: activity.TypeRecordMinted,
		Summary:      "minted",
	}

	repo.On("Log", ctx, entry).Return(nil)
	repo.On("List", ctx, activity.ListActivityOptions{Limit: activity.DefaultListLimit}).Return([]activity.ActivityEntry{*entry}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, entry))
	require.False(t, entry.CreatedAt.IsZero())

	list, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	repo.AssertExpectations(t)
}

func TestActivityService_LogRejectsIncompleteEntry(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)

	require.ErrorIs(t, svc.LogActivity(context.Background(), nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), &activity.ActivityEntry{EventID: "x"}), activity.ErrInvalidInput)
}

func TestActivityService_HandleEvent(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fp := ledger.Fingerprint{1, 2, 3}

	tests := []struct {
		name    string
		event   ledger.Event
		want    activity.ActivityType
		summary string
	}{
		{
			name:    "registered",
			event:   ledger.Event{ID: "e1", Type: ledger.EventRegistered, RecordID: 0, Actor: "alice", Fingerprint: &fp, Timestamp: at},
			want:    activity.TypeRecordMinted,
			summary: "alice minted record 0",
		},
		{
			name:    "verified",
			event:   ledger.Event{ID: "e2", Type: ledger.EventVerified, RecordID: 0, Actor: "bob", VerificationCount: 1, Timestamp: at},
			want:    activity.TypeRecordVerified,
			summary: "bob verified record 0 (1 verifications)",
		},
		{
			name:    "transferred",
			event:   ledger.Event{ID: "e3", Type: ledger.EventTransferred, RecordID: 0, Actor: "alice", Counterparty: "carol", Timestamp: at},
			want:    activity.TypeRecordTransferred,
			summary: "record 0 transferred from alice to carol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.ActivityRepository{}
			var logged *activity.ActivityEntry
			repo.On("Log", ctx, mock.AnythingOfType("*activity.ActivityEntry")).
				Run(func(args mock.Arguments) { logged = args.Get(1).(*activity.ActivityEntry) }).
				Return(nil)

			svc := activity.NewService(repo, nil)
			require.NoError(t, svc.HandleEvent(ctx, tt.event))

			require.NotNil(t, logged)
			require.Equal(t, tt.event.ID, logged.EventID)
			require.Equal(t, tt.want, logged.ActivityType)
			require.Equal(t, tt.summary, logged.Summary)
			require.Equal(t, at, logged.CreatedAt)

			var details ledger.Event
			require.NoError(t, json.Unmarshal([]byte(logged.Details), &details))
			require.Equal(t, tt.event.Type, details.Type)
		})
	}
}

func TestActivityService_HandleEventIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, mock.Anything).Return(repository.ErrConflict)

	svc := activity.NewService(repo, nil)
	err := svc.HandleEvent(ctx, ledger.Event{ID: "dup", Type: ledger.EventVerified, Actor: "bob", Timestamp: time.Now()})
	require.NoError(t, err)
}

func TestActivityService_HandleEventUnknownType(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	err := svc.HandleEvent(context.Background(), ledger.Event{ID: "x", Type: "burned"})
	require.ErrorIs(t, err, activity.ErrInvalidInput)
}
