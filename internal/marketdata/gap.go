package marketdata

// GapRecovery implements spec.md §3.3/S3's snapshot-gap-detection state
// machine: a snapshot with last_update_id=U is consistent with a depth
// update iff start_update_id ≤ U+1 ≤ end_update_id AND the update's
// prev_end_update_id equals the previous update's end_update_id. On any
// inconsistency the engine discards the partial book, waits for (and
// applies) a fresh snapshot, then resumes applying only updates strictly
// after it.
type GapRecovery struct {
	synced        bool
	lastEndUpdate uint64
}

// NewGapRecovery starts in the unsynced state: every depth update is
// dropped until a consistent snapshot has been applied.
func NewGapRecovery() *GapRecovery { return &GapRecovery{} }

// Synced reports whether the book is currently known-consistent.
func (g *GapRecovery) Synced() bool { return g.synced }

// AdmitDepthUpdate reports whether batch should be applied to the book. A
// batch is admitted only while synced and its prev_end_update_id matches
// the last admitted batch's end_update_id; any mismatch desyncs the
// recovery state so the caller can request a fresh snapshot.
func (g *GapRecovery) AdmitDepthUpdate(batch MarketUpdateData) bool {
	if !g.synced {
		return false
	}
	if batch.PrevEndUpdateID != g.lastEndUpdate {
		g.synced = false
		return false
	}
	g.lastEndUpdate = batch.LastUpdateID
	return true
}

// PendingUpdate is a depth update buffered while waiting for a snapshot, so
// it can be re-checked against the snapshot's last_update_id once it
// arrives.
type PendingUpdate struct {
	StartUpdateID uint64
	EndUpdateID   uint64
	Batch         MarketUpdateData
}

// ApplySnapshot reconciles a fresh REST snapshot against buffered depth
// updates: it returns the subset of pending (already-buffered) updates that
// are consistent with the snapshot and should be applied afterward, per
// spec.md §3.3's start_update_id ≤ U+1 ≤ end_update_id rule. The recovery
// state becomes synced with lastEndUpdate seeded from the last consistent
// update found (or the snapshot itself if none apply).
func (g *GapRecovery) ApplySnapshot(lastUpdateID uint64, pending []PendingUpdate) []MarketUpdateData {
	g.synced = true
	g.lastEndUpdate = lastUpdateID

	var toApply []MarketUpdateData
	for _, p := range pending {
		if p.StartUpdateID <= lastUpdateID+1 && lastUpdateID+1 <= p.EndUpdateID {
			toApply = append(toApply, p.Batch)
			g.lastEndUpdate = p.EndUpdateID
		}
	}
	return toApply
}

// Desync forces the recovery state back to unsynced, e.g. after a detected
// prev_end_update_id mismatch that AdmitDepthUpdate already reported.
func (g *GapRecovery) Desync() {
	g.synced = false
}
