package intents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genIntents() *rapid.Generator[Intents] {
	return rapid.Custom(func(t *rapid.T) Intents {
		return Intents(rapid.Uint64().Draw(t, "bits")) & All
	})
}

func TestUnionLaws(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genIntents().Draw(t, "a")
		b := genIntents().Draw(t, "b")
		c := genIntents().Draw(t, "c")

		if Union(a, b) != Union(b, a) {
			t.Fatalf("union not commutative for %v, %v", a, b)
		}
		if Union(Union(a, b), c) != Union(a, Union(b, c)) {
			t.Fatalf("union not associative for %v, %v, %v", a, b, c)
		}
		if Union(a, a) != a {
			t.Fatalf("union not idempotent for %v", a)
		}
		if Union(a, None) != a {
			t.Fatalf("None is not the identity for %v", a)
		}
	})
}

func TestParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := genIntents().Draw(t, "in")
		out, err := Parse(in.String())
		if err != nil {
			t.Fatalf("parse %q: %v", in.String(), err)
		}
		if out != in {
			t.Fatalf("round trip %v became %v", in, out)
		}
	})
}

func TestParseRoundTripKeepsUnknownBits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := Intents(rapid.Uint64().Draw(t, "bits"))
		out, err := Parse(in.String())
		if err != nil {
			t.Fatalf("parse %q: %v", in.String(), err)
		}
		if out != in {
			t.Fatalf("round trip %v became %v", in, out)
		}
	})
}

func TestUnionOfNothingIsNone(t *testing.T) {
	assert.Equal(t, None, Union())
	assert.Equal(t, "None", None.String())
}

func TestString(t *testing.T) {
	assert.Equal(t, "GuildMessages|MessageContent", (MessageContent | GuildMessages).String())
	assert.Equal(t, "Guilds|0x40000", (Guilds | Intents(1<<18)).String())
}

func TestParse(t *testing.T) {
	got, err := Parse(" guildmembers | MessageContent ")
	require.NoError(t, err)
	assert.Equal(t, GuildMembers|MessageContent, got)

	got, err = Parse("none")
	require.NoError(t, err)
	assert.Equal(t, None, got)

	got, err = Parse("Guilds|0x40000")
	require.NoError(t, err)
	assert.Equal(t, Guilds|Intents(1<<18), got)
	assert.False(t, got.Valid())

	_, err = Parse("Guilds|Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nope")

	_, err = Parse("0xzz")
	assert.ErrorContains(t, err, "0xzz")
}

func TestValidAndUnknown(t *testing.T) {
	assert.True(t, All.Valid())
	assert.True(t, None.Valid())

	bogus := Guilds | Intents(1<<40)
	assert.False(t, bogus.Valid())
	assert.Equal(t, Intents(1<<40), bogus.Unknown())
}

func TestPrivileged(t *testing.T) {
	set := Guilds | GuildMessages | MessageContent | GuildMembers
	assert.Equal(t, MessageContent|GuildMembers, set.Privileged())
	assert.True(t, set.Has(GuildMessages|Guilds))
	assert.False(t, set.Has(GuildPresences))
	assert.Equal(t, 4, set.Len())
}
