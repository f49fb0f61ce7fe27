// ABOUTME: Tests for the sync attempt journal
// ABOUTME: Verifies ULID assignment, filtering, and ordering
package db

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/scanpush/models"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncLogRecordAttempt(t *testing.T) {
	journal := NewSyncLog(setupTestDB(t))
	ctx := context.Background()

	attempt := &models.SyncAttempt{
		FormID:   "abc123",
		Status:   models.SyncStatusSucceeded,
		RemoteID: "0015g1",
	}
	require.NoError(t, journal.RecordAttempt(ctx, attempt))

	_, err := ulid.Parse(attempt.ID)
	assert.NoError(t, err, "attempt ID should be a ULID")
	assert.False(t, attempt.AttemptedAt.IsZero())

	attempts, err := journal.ListAttempts(ctx, "abc123", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "0015g1", attempts[0].RemoteID)
	assert.Equal(t, models.SyncStatusSucceeded, attempts[0].Status)
	assert.Empty(t, attempts[0].ErrorKind)
}

func TestSyncLogListAttemptsFiltersAndOrders(t *testing.T) {
	journal := NewSyncLog(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, journal.RecordAttempt(ctx, &models.SyncAttempt{
		FormID: "a", Status: models.SyncStatusFailed, ErrorKind: "write_failed",
		Detail: `[{"errorCode":"REQUIRED_FIELD_MISSING"}]`, AttemptedAt: base,
	}))
	require.NoError(t, journal.RecordAttempt(ctx, &models.SyncAttempt{
		FormID: "a", Status: models.SyncStatusSucceeded, RemoteID: "001", AttemptedAt: base.Add(time.Minute),
	}))
	require.NoError(t, journal.RecordAttempt(ctx, &models.SyncAttempt{
		FormID: "b", Status: models.SyncStatusSucceeded, RemoteID: "002", AttemptedAt: base.Add(2 * time.Minute),
	}))

	forA, err := journal.ListAttempts(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, models.SyncStatusSucceeded, forA[0].Status, "newest attempt first")
	assert.Equal(t, `[{"errorCode":"REQUIRED_FIELD_MISSING"}]`, forA[1].Detail)

	all, err := journal.ListAttempts(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].FormID)
}

func TestSyncLogRejectsUnknownStatus(t *testing.T) {
	journal := NewSyncLog(setupTestDB(t))

	err := journal.RecordAttempt(context.Background(), &models.SyncAttempt{FormID: "a", Status: "maybe"})
	assert.Error(t, err)
}
