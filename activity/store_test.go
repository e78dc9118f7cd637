package activity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "activity.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := WithActor(context.Background(), "ada@example.com")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, Entry{Action: ActionCreate, Entity: "post", EntityID: "1", Label: "First", At: base}))
	require.NoError(t, s.Record(ctx, Entry{Action: ActionUpdate, Entity: "post", EntityID: "1", Label: "First", At: base.Add(time.Minute)}))
	require.NoError(t, s.Record(context.Background(), Entry{Action: ActionDelete, Entity: "tag", EntityID: "2", Label: "go", At: base.Add(2 * time.Minute)}))

	entries, err := s.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ActionDelete, entries[0].Action)
	assert.Equal(t, "system", entries[0].Actor)
	assert.Equal(t, ActionUpdate, entries[1].Action)
	assert.Equal(t, "ada@example.com", entries[1].Actor)
	assert.True(t, entries[1].At.Equal(base.Add(time.Minute)))
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Record(ctx, Entry{Action: ActionCreate, Entity: "post", At: now.AddDate(0, 0, -40)}))
	require.NoError(t, s.Record(ctx, Entry{Action: ActionCreate, Entity: "post", At: now}))

	n, err := s.Prune(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSchemaVersionRecorded(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetSetting("schema_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	missing, err := s.GetSetting("nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCleanupSchedulerStops(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Record(context.Background(), Entry{Action: ActionCreate, Entity: "post", At: time.Now().AddDate(0, 0, -10)}))
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stop := s.StartCleanupScheduler(1, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		entries, err := s.Recent(context.Background(), 10)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 10*time.Millisecond)
	stop()
	assert.NotPanics(t, stop)
}
