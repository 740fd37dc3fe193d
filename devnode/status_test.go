package devnode

import (
	"context"
	"testing"
	"time"

	"github.com/blockberries/cookiejar/types"

	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := newTracker()
	require.Equal(t, types.StatusUnknown, tr.get("b1").Status)

	require.True(t, tr.add("b1"))
	require.False(t, tr.add("b1"), "duplicate ids are refused")
	require.Equal(t, types.StatusPending, tr.get("b1").Status)

	tr.set(types.BatchStatus{ID: "b1", Status: types.StatusCommitted})
	require.Equal(t, types.StatusCommitted, tr.get("b1").Status)

	// Terminal statuses never change.
	tr.set(types.BatchStatus{ID: "b1", Status: types.StatusInvalid})
	require.Equal(t, types.StatusCommitted, tr.get("b1").Status)

}

func TestTracker_WaitWakesOnTerminal(t *testing.T) {
	tr := newTracker()
	require.True(t, tr.add("b1"))

	time.AfterFunc(20*time.Millisecond, func() {
		tr.set(types.BatchStatus{ID: "b1", Status: types.StatusInvalid})
	})

	start := time.Now()
	got := tr.wait(context.Background(), []string{"b1", "never-seen"}, 5*time.Second)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, []types.BatchStatus{
		{ID: "b1", Status: types.StatusInvalid},
		{ID: "never-seen", Status: types.StatusUnknown},
	}, got)
}

func TestTracker_WaitTimesOut(t *testing.T) {
	tr := newTracker()
	require.True(t, tr.add("b1"))

	got := tr.wait(context.Background(), []string{"b1"}, 30*time.Millisecond)
	require.Equal(t, types.StatusPending, got[0].Status)

	// Without a wait the answer is immediate.
	got = tr.wait(context.Background(), []string{"b1"}, 0)
	require.Equal(t, types.StatusPending, got[0].Status)
}

func TestTracker_WaitCancelled(t *testing.T) {
	tr := newTracker()
	require.True(t, tr.add("b1"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	got := tr.wait(ctx, []string{"b1"}, time.Minute)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, types.StatusPending, got[0].Status)
}
