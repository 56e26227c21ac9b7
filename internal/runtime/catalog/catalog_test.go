package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/drblury/shardwire/internal/runtime/diagnostics"
	errspkg "github.com/drblury/shardwire/internal/runtime/errors"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/intents"
)

func onMessage(ctx context.Context, evt *events.MessageCreateEvent) error { return nil }

func onMessageEdit(ctx context.Context, evt events.Payload) error { return nil }

func onMember(ctx context.Context, evt *events.MemberAddEvent) error { return nil }

func onReady(ctx context.Context, evt *events.ReadyEvent) error { return nil }

type failingModule struct{}

func (failingModule) ModuleName() string { return "broken" }

func (failingModule) Declarations() ([]Declaration, error) {
	return nil, errors.New("package not linked")
}

func TestScanMultiMarkerDeclaration(t *testing.T) {
	reg := NewRegistry("bot")
	reg.Register(Declaration{
		Name:    "greeter",
		Handler: onMessageEdit,
		Markers: []Marker{
			On(events.MessageCreated, intents.GuildMessages|intents.MessageContent),
			On(events.MessageUpdated, intents.GuildMessages),
		},
	})

	cat, err := Scan(reg, nil)
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	entries := cat.Entries()
	assert.Equal(t, "greeter", entries[0].Handler)
	assert.Equal(t, events.MessageCreated, entries[0].Event)
	assert.Equal(t, events.MessageUpdated, entries[1].Event)
	assert.Equal(t, "bot", entries[1].Module)
	assert.Equal(t, []string{"greeter"}, cat.Handlers())
	assert.Equal(t, []events.Category{events.MessageCreated, events.MessageUpdated}, cat.Events())
}

func TestScanDefaultsNameToSymbol(t *testing.T) {
	reg := NewRegistry("bot")
	reg.Register(Declaration{Handler: onReady, Markers: []Marker{On(events.Ready, intents.None)}})

	cat, err := Scan(reg, nil)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Len())
	assert.Contains(t, cat.Entries()[0].Handler, "catalog.onReady")
}

func TestScanSkipsMalformedDeclarations(t *testing.T) {
	reg := NewRegistry("bot")
	reg.Register(Declaration{Name: "ok", Handler: onMessage, Markers: []Marker{On(events.MessageCreated, intents.GuildMessages)}})
	reg.Register(Declaration{Name: "no-markers", Handler: onMember})
	reg.Register(Declaration{Name: "not-func", Handler: 42, Markers: []Marker{On(events.Ready, intents.None)}})
	reg.Register(Declaration{Name: "nil", Markers: []Marker{On(events.Ready, intents.None)}})
	reg.Register(Declaration{Name: "member", Handler: onMember, Markers: []Marker{On(events.MemberAdded, intents.GuildMembers)}})

	diags := diagnostics.NewCollector()
	cat, err := Scan(reg, diags)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok", "member"}, cat.Handlers())
	malformed := diags.ByKind(diagnostics.KindMalformedDeclaration)
	require.Len(t, malformed, 3)
	assert.ErrorIs(t, malformed[0].Err, errspkg.ErrMarkerRequired)
	assert.ErrorIs(t, malformed[1].Err, errspkg.ErrHandlerNotFunc)
	assert.ErrorIs(t, malformed[2].Err, errspkg.ErrHandlerRequired)
	for _, d := range malformed {
		assert.ErrorIs(t, d.Err, errspkg.ErrMalformedDeclaration)
		assert.Equal(t, "bot", d.Module)
	}
}

func TestScanSkipsBadMarkersOnly(t *testing.T) {
	reg := NewRegistry("bot")
	reg.Register(Declaration{
		Name:    "mixed",
		Handler: onMessage,
		Markers: []Marker{
			On(events.MessageCreated, intents.GuildMessages),
			On("", intents.Guilds),
			On("TypingStarted", intents.GuildMessageTyping),
			On(events.MessageCreated, intents.Intents(1<<50)),
		},
	})

	diags := diagnostics.NewCollector()
	cat, err := Scan(reg, diags)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Len())

	all := diags.All()
	require.Len(t, all, 3)
	assert.ErrorIs(t, all[0].Err, errspkg.ErrEventRequired)
	assert.ErrorIs(t, all[1].Err, errspkg.ErrUnknownEvent)
	assert.Equal(t, "TypingStarted", all[1].Event)
	assert.ErrorIs(t, all[2].Err, errspkg.ErrUnknownIntents)
}

func TestScanRejectsNameReuseAcrossFunctions(t *testing.T) {
	reg := NewRegistry("bot")
	reg.Register(Declaration{Name: "h", Handler: onMessage, Markers: []Marker{On(events.MessageCreated, intents.GuildMessages)}})
	reg.Register(Declaration{Name: "h", Handler: onMember, Markers: []Marker{On(events.MemberAdded, intents.GuildMembers)}})
	reg.Register(Declaration{Name: "h", Handler: onMessage, Markers: []Marker{On(events.MessageUpdated, intents.GuildMessages)}})

	diags := diagnostics.NewCollector()
	cat, err := Scan(reg, diags)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
	require.Equal(t, 1, diags.Len())
	assert.ErrorIs(t, diags.All()[0].Err, errspkg.ErrDuplicateHandlerName)
}

func TestScanLoadFailureIsFatal(t *testing.T) {
	cat, err := Scan(failingModule{}, nil)
	assert.Nil(t, cat)
	require.ErrorIs(t, err, errspkg.ErrLoadFailure)
	assert.Contains(t, err.Error(), "package not linked")

	_, err = Scan(nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrLoadFailure)
	assert.ErrorIs(t, err, errspkg.ErrModuleRequired)

	_, err = Scan(Modules("all", NewRegistry("a"), failingModule{}), nil)
	assert.ErrorIs(t, err, errspkg.ErrLoadFailure)
}

func TestModulesKeepOrder(t *testing.T) {
	a := NewRegistry("a")
	a.Register(Declaration{Name: "first", Handler: onReady, Markers: []Marker{On(events.Ready, intents.None)}})
	b := NewRegistry("b")
	b.Register(Declaration{Name: "second", Handler: onMember, Markers: []Marker{On(events.MemberAdded, intents.GuildMembers)}})

	cat, err := Scan(Modules("all", a, nil, b), nil)
	require.NoError(t, err)
	assert.Equal(t, "all", cat.Module())
	assert.Equal(t, []string{"first", "second"}, cat.Handlers())
}

func TestRegistryCopiesMarkers(t *testing.T) {
	reg := NewRegistry("bot")
	markers := []Marker{On(events.MessageCreated, intents.GuildMessages)}
	reg.Register(Declaration{Name: "h", Handler: onMessage, Markers: markers})
	markers[0].Event = events.Ready

	decls, err := reg.Declarations()
	require.NoError(t, err)
	assert.Equal(t, events.MessageCreated, decls[0].Markers[0].Event)
	assert.Equal(t, 1, reg.Len())
}

func TestEntriesIsACopy(t *testing.T) {
	reg := NewRegistry("bot")
	reg.Register(Declaration{Name: "h", Handler: onMessage, Markers: []Marker{On(events.MessageCreated, intents.GuildMessages)}})
	cat, err := Scan(reg, nil)
	require.NoError(t, err)

	entries := cat.Entries()
	entries[0].Handler = "mutated"
	assert.Equal(t, "h", cat.Entries()[0].Handler)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Equal(t, intents.None, Aggregate(nil))

	cat, err := Scan(NewRegistry("empty"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
	assert.Equal(t, intents.None, Aggregate(cat))
}

func TestAggregateTwoHandlers(t *testing.T) {
	reg := NewRegistry("bot")
	reg.Register(Declaration{
		Name:    "h1",
		Handler: onMessageEdit,
		Markers: []Marker{
			On(events.MessageCreated, intents.GuildMessages|intents.MessageContent),
			On(events.MessageUpdated, intents.GuildMessages),
		},
	})
	reg.Register(Declaration{Name: "h2", Handler: onMember, Markers: []Marker{On(events.MemberAdded, intents.GuildMembers)}})

	cat, err := Scan(reg, nil)
	require.NoError(t, err)
	assert.Equal(t, intents.GuildMessages|intents.MessageContent|intents.GuildMembers, Aggregate(cat))
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bits := rapid.SliceOfN(rapid.Uint64(), 0, 12).Draw(t, "bits")
		markers := make([]Marker, len(bits))
		for i, b := range bits {
			markers[i] = On(events.MessageCreated, intents.Intents(b)&intents.All)
		}
		perm := rapid.Permutation(markers).Draw(t, "perm")

		build := func(ms []Marker) intents.Intents {
			reg := NewRegistry("prop")
			if len(ms) > 0 {
				reg.Register(Declaration{Name: "h", Handler: onMessage, Markers: ms})
			}
			cat, err := Scan(reg, nil)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			return Aggregate(cat)
		}

		var want intents.Intents
		for _, m := range markers {
			want |= m.Intents
		}
		if got := build(markers); got != want {
			t.Fatalf("aggregate %v, want %v", got, want)
		}
		if got := build(perm); got != want {
			t.Fatalf("permuted aggregate %v, want %v", got, want)
		}
	})
}
