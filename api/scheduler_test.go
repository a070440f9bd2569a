package api_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/store/sqlite"
)

func TestLogRetentionScheduler_RunNow(t *testing.T) {
	// GIVEN: Message logs from three different months
	// WHEN: The scheduler runs with a two-month window
	// THEN: Only the oldest month is deleted

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	for _, sent := range []time.Time{
		time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	} {
		_, err := store.LogMessage(ctx, sqlite.MessageLog{
			ManagerCode: "M001", CustomerNumber: "A001", MessageType: 1, SentAt: sent,
		})
		require.NoError(t, err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := api.NewLogRetentionScheduler(store, logger)
	s.KeepMonths = 2
	s.Now = func() time.Time { return now }

	assert.Equal(t, int64(1), s.RunNow(ctx))
	assert.Equal(t, int64(0), s.RunNow(ctx))

	feb, err := store.MessageSummary(ctx, "M001", "202502")
	require.NoError(t, err)
	assert.Equal(t, 1, feb[1].Count)
}

func TestLogRetentionScheduler_StartStop(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s := api.NewLogRetentionScheduler(store, nil)
	s.CheckInterval = 10 * time.Millisecond
	s.Metrics = api.NewMetrics()

	s.Start()
	s.Start() // no second goroutine
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestLogRetentionScheduler_Disabled(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s := api.NewLogRetentionScheduler(store, nil)
	s.Enabled = false
	s.Start()
	s.Stop()

	assert.False(t, s.NextRunTime().IsZero())
}
