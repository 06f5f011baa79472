package orders

// FindLayerByTick returns the slot index currently mapped to tick, or -1.
func FindLayerByTick(sb *SideBook, tick uint64) int {
	for i := range sb.Slots {
		if sb.Slots[i].LayerTick == tick {
			return i
		}
	}
	return -1
}

// FindLayerByID returns the slot index whose live ClOrderID is id, or -1.
func FindLayerByID(sb *SideBook, clOrderID uint64) int {
	if clOrderID == 0 {
		return -1
	}
	for i := range sb.Slots {
		if sb.Slots[i].ClOrderID == clOrderID {
			return i
		}
	}
	return -1
}

// findFreeLayer returns the first slot that is either unused (Invalid/Dead
// state) or unmapped to any tick, or -1 if every slot is occupied.
func findFreeLayer(sb *SideBook) int {
	for i := range sb.Slots {
		s := &sb.Slots[i]
		if s.State == StateInvalid || s.State == StateDead {
			return i
		}
		if s.LayerTick == TickInvalid {
			return i
		}
	}
	return -1
}

// pickVictim returns the slot with the oldest LastUsedNs, the LRU victim
// spec.md §4.6 step 3 evicts when every slot is occupied.
func pickVictim(sb *SideBook) int {
	victim := 0
	for i := 1; i < SlotsPerSide; i++ {
		if sb.Slots[i].LastUsedNs < sb.Slots[victim].LastUsedNs {
			victim = i
		}
	}
	return victim
}

// AssignPlan is the result of PlanLayer/AssignLayer: which slot a new quote
// intent at Tick should use, and — if eviction was required — which
// currently-Live slot the caller must cancel first.
type AssignPlan struct {
	Layer           int
	VictimLiveLayer int // -1 if no victim cancel is required
	Tick            uint64
}

// PlanLayer is the read-only version of spec.md §4.6's plan_layer: it
// reports which slot a tick would use without claiming it. Used by callers
// that want to preview eviction before committing (e.g. to size a batched
// cancel+new request).
func PlanLayer(sb *SideBook, tick uint64) AssignPlan {
	if layer := FindLayerByTick(sb, tick); layer >= 0 {
		return AssignPlan{Layer: layer, VictimLiveLayer: -1, Tick: tick}
	}
	if layer := findFreeLayer(sb); layer >= 0 {
		return AssignPlan{Layer: layer, VictimLiveLayer: -1, Tick: tick}
	}
	victim := pickVictim(sb)
	victimLive := -1
	if sb.Slots[victim].State == StateLive {
		victimLive = victim
	}
	return AssignPlan{Layer: victim, VictimLiveLayer: victimLive, Tick: tick}
}

// AssignLayer is PlanLayer plus the claim: it maps tick onto the chosen
// slot and stamps clOrderID/nowNs, so a caller can send the new order
// immediately afterward. If the idempotent (already-mapped) branch is
// taken, the slot keeps its existing ClOrderID untouched — re-sending the
// same tick is a no-op on identity, only LastUsedNs is refreshed.
func AssignLayer(sb *SideBook, tick uint64, clOrderID uint64, nowNs int64) AssignPlan {
	plan := PlanLayer(sb, tick)
	alreadyOwned := FindLayerByTick(sb, tick) == plan.Layer

	slot := &sb.Slots[plan.Layer]
	slot.LayerTick = tick
	slot.LastUsedNs = nowNs
	if !alreadyOwned {
		slot.ClOrderID = clOrderID
	}
	return plan
}

// unmapLayer clears the tick mapping for layer, called whenever a slot goes
// terminal (Dead) or is freed for reuse.
func unmapLayer(sb *SideBook, layer int) {
	sb.Slots[layer].LayerTick = TickInvalid
}
