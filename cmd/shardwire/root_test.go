package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/shardwire/internal/runtime/catalog"
	"github.com/drblury/shardwire/internal/runtime/events"
	"github.com/drblury/shardwire/internal/runtime/intents"
)

func onMessage(context.Context, *events.MessageCreateEvent) error { return nil }

func TestPrintHandlers(t *testing.T) {
	reg := catalog.NewRegistry("cli")
	reg.Register(catalog.Declaration{
		Name:    "onMessage",
		Handler: onMessage,
		Markers: []catalog.Marker{catalog.On(events.MessageCreated, intents.GuildMessages|intents.MessageContent)},
	})
	reg.Register(catalog.Declaration{Name: "broken", Handler: "not a func", Markers: []catalog.Marker{catalog.On(events.Ready, intents.None)}})

	var out bytes.Buffer
	require.NoError(t, printHandlers(&out, reg))

	text := out.String()
	assert.Contains(t, text, "onMessage")
	assert.Contains(t, text, "MessageCreated")
	assert.Contains(t, text, "intents: GuildMessages|MessageContent")
	assert.Contains(t, text, "privileged: MessageContent")
	assert.Contains(t, text, "diagnostic: malformed_declaration")
}

func TestHandlersCommandListsBundledHandlers(t *testing.T) {
	var out bytes.Buffer
	handlersCmd.SetOut(&out)
	t.Cleanup(func() { handlersCmd.SetOut(nil) })

	require.NoError(t, handlersCmd.RunE(handlersCmd, nil))
	assert.Contains(t, out.String(), "handlers.countMessage")
	assert.Contains(t, out.String(), "GuildMembers")
}

func TestRootCommandRunsBotAndCarriesVersion(t *testing.T) {
	setVersion("1.2.3 (commit: abc, built: today)")
	t.Cleanup(func() { setVersion("") })

	require.NotNil(t, rootCmd.RunE)
	assert.Equal(t, "1.2.3 (commit: abc, built: today)", handlersCmd.Root().Version)
}
