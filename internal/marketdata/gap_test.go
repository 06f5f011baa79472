package marketdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario S3 — snapshot gap recovery: feed depth updates with
// (U=10,u=19,pu=9), (U=20,u=29,pu=19), then a snapshot with
// lastUpdateId=25. Expect the engine to discard the partial book, apply the
// snapshot, then resume applying only updates strictly after it.
func TestScenarioS3SnapshotGapRecovery(t *testing.T) {
	g := NewGapRecovery()
	require.False(t, g.Synced())

	u1 := MarketUpdateData{Kind: KindMarket, FirstUpdateID: 10, LastUpdateID: 19, PrevEndUpdateID: 9}
	u2 := MarketUpdateData{Kind: KindMarket, FirstUpdateID: 20, LastUpdateID: 29, PrevEndUpdateID: 19}

	require.False(t, g.AdmitDepthUpdate(u1), "updates before the first snapshot are never admitted")
	require.False(t, g.AdmitDepthUpdate(u2))

	pending := []PendingUpdate{
		{StartUpdateID: 10, EndUpdateID: 19, Batch: u1},
		{StartUpdateID: 20, EndUpdateID: 29, Batch: u2},
	}
	toApply := g.ApplySnapshot(25, pending)

	// lastUpdateId=25: u1 (10..19) satisfies start 10 ≤ 26 but not
	// 26 ≤ end_update_id (19) — it's stale and dropped; u2 (20..29)
	// satisfies 20 ≤ 26 ≤ 29 and is applied.
	require.Len(t, toApply, 1)
	require.Equal(t, u2, toApply[0])
	require.True(t, g.Synced())

	u3 := MarketUpdateData{Kind: KindMarket, FirstUpdateID: 30, LastUpdateID: 39, PrevEndUpdateID: 29}
	require.True(t, g.AdmitDepthUpdate(u3))

	u4 := MarketUpdateData{Kind: KindMarket, FirstUpdateID: 50, LastUpdateID: 59, PrevEndUpdateID: 45}
	require.False(t, g.AdmitDepthUpdate(u4), "prev_end_update_id mismatch must desync")
	require.False(t, g.Synced())
}
