package reducer

import (
	"huddle/pkg/types"
)

// Slot allocation and roster bookkeeping.
//
// ARCHITECTURAL DISCOVERY: The slot table and the roster are two views of one
// fact - which of the six identities is bound to whom - so both mutate only
// here, together. The free/occupied precondition is checked at the reducer
// boundary (the user_join branch) before allocation, never inside it; the
// dispatch layer uses the same SlotFree predicate to reject a join before an
// action even exists. The six-slot ceiling is structural: there is no seventh
// slot to allocate.

// allocateSlot marks the slot taken and appends its occupant to the roster.
// Caller must have verified the slot is free.
func allocateSlot(state *types.SessionState, slot types.Slot, participant types.Participant) {
	state.SlotAvailable[slot] = false
	state.Participants = append(state.Participants, participant)
}

// releaseSlot removes the roster entry at idx and frees the slot it occupied
func releaseSlot(state *types.SessionState, idx int) {
	slot := state.Participants[idx].Slot
	state.Participants = append(state.Participants[:idx], state.Participants[idx+1:]...)
	state.SlotAvailable[slot] = true
}

// cloneState returns a deep copy of the state. Every reducer branch that
// changes anything clones first, so the caller's state value survives intact
// and replicas can hold references to prior snapshots safely.
// TECHNICAL DISCOVERY: With six participants and a bounded log window the
// copy is small; paying it on every action is far cheaper than reasoning
// about partial structural sharing going wrong on one replica and not another
func cloneState(state types.SessionState) types.SessionState {
	next := state

	next.SlotAvailable = make(map[types.Slot]bool, len(state.SlotAvailable))
	for slot, free := range state.SlotAvailable {
		next.SlotAvailable[slot] = free
	}

	next.Participants = make([]types.Participant, len(state.Participants))
	copy(next.Participants, state.Participants)
	for i := range next.Participants {
		if c := next.Participants[i].Cursor; c != nil {
			cursor := *c
			next.Participants[i].Cursor = &cursor
		}
	}

	next.ActivityLog = make([]types.LogEntry, len(state.ActivityLog))
	copy(next.ActivityLog, state.ActivityLog)

	next.Interactions = make([]types.AIInteraction, len(state.Interactions))
	copy(next.Interactions, state.Interactions)
	for i := range next.Interactions {
		if reqs := next.Interactions[i].ToolRequests; reqs != nil {
			copied := make([]types.ToolRequest, len(reqs))
			copy(copied, reqs)
			for j := range copied {
				slots := make([]types.Slot, len(copied[j].ApprovedBySlots))
				copy(slots, copied[j].ApprovedBySlots)
				copied[j].ApprovedBySlots = slots
			}
			next.Interactions[i].ToolRequests = copied
		}
	}

	if state.CodeCursor != nil {
		cursor := *state.CodeCursor
		next.CodeCursor = &cursor
	}

	elements := make([]types.CanvasElement, len(state.Canvas.Content))
	copy(elements, state.Canvas.Content)
	next.Canvas.Content = elements

	return next
}
