package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drblury/shardwire/internal/runtime/catalog"
	"github.com/drblury/shardwire/internal/runtime/events"
)

// fakeTarget exposes a chosen subset of slots.
type fakeTarget struct {
	id string
	*events.SlotSet
}

func newFakeTarget(id string, slots ...events.Slot) *fakeTarget {
	return &fakeTarget{id: id, SlotSet: events.NewSlotSet(slots...)}
}

func (f *fakeTarget) TargetID() string { return f.id }

func gatewayTarget(id string) *fakeTarget {
	return newFakeTarget(id,
		events.NewSlot[*events.ReadyEvent](events.Ready),
		events.NewSlot[*events.MessageCreateEvent](events.MessageCreated),
		events.NewSlot[*events.MemberAddEvent](events.MemberAdded),
	)
}

func commandTarget(id string) *fakeTarget {
	return newFakeTarget(id,
		events.NewSlot[*events.CommandExecutedEvent](events.CommandExecuted),
		events.NewSlot[*events.CommandErroredEvent](events.CommandErrored),
	)
}

// calls records handler invocations by name.
type calls struct {
	mu    sync.Mutex
	names []string
}

func (c *calls) record(name string) {
	c.mu.Lock()
	c.names = append(c.names, name)
	c.mu.Unlock()
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func recorder[E events.Payload](c *calls, name string) func(context.Context, E) error {
	return func(ctx context.Context, evt E) error {
		c.record(name)
		return nil
	}
}

func scan(t *testing.T, decls ...catalog.Declaration) *catalog.Catalog {
	t.Helper()
	reg := catalog.NewRegistry("test")
	for _, d := range decls {
		reg.Register(d)
	}
	cat, err := catalog.Scan(reg, nil)
	require.NoError(t, err)
	return cat
}

func dispatch(t *testing.T, target events.Target, p events.Payload) {
	t.Helper()
	slot, ok := target.Slot(p.Category())
	require.True(t, ok)
	require.NoError(t, slot.Dispatch(context.Background(), p))
}
