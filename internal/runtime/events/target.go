package events

import "context"

// Target is anything exposing named event slots: a shard connection, or an
// extension layered on one. Registration code only sees this interface.
type Target interface {
	// TargetID is unique per process, e.g. "shard-0" or "shard-0/commands".
	TargetID() string
	Categories() []Category
	Slot(c Category) (Slot, bool)
}

// SlotSet is the slot table targets embed.
type SlotSet struct {
	order []Category
	slots map[Category]Slot
}

// NewSlotSet indexes slots by category. Later slots replace earlier ones with
// the same category.
func NewSlotSet(slots ...Slot) *SlotSet {
	set := &SlotSet{slots: make(map[Category]Slot, len(slots))}
	for _, s := range slots {
		if _, exists := set.slots[s.Category()]; !exists {
			set.order = append(set.order, s.Category())
		}
		set.slots[s.Category()] = s
	}
	return set
}

func (s *SlotSet) Slot(c Category) (Slot, bool) {
	slot, ok := s.slots[c]
	return slot, ok
}

func (s *SlotSet) Categories() []Category {
	out := make([]Category, len(s.order))
	copy(out, s.order)
	return out
}

// Seal seals every slot in the set.
func (s *SlotSet) Seal() {
	for _, slot := range s.slots {
		slot.Seal()
	}
}

// Dispatch routes p to its slot. It reports false when the set has no slot
// for p's category.
func (s *SlotSet) Dispatch(ctx context.Context, p Payload) (bool, error) {
	slot, ok := s.slots[p.Category()]
	if !ok {
		return false, nil
	}
	return true, slot.Dispatch(ctx, p)
}
