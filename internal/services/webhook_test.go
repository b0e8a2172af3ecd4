package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/monocle-dev/staffing/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChange() events.Change {
	return events.Change{
		ProjectID:   3,
		ProjectName: "Gemini",
		Kind:        events.KindSynced,
		Attached:    []uint{1, 2},
		Detached:    []uint{4},
		Actor:       "Kohaku",
		At:          time.Date(2025, 5, 15, 8, 43, 8, 0, time.UTC),
	}
}

func TestNotifierSend(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies = map[string]map[string]any{}
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		mu.Lock()
		bodies[r.URL.Path] = body
		mu.Unlock()

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(server.URL+"/slack", server.URL+"/discord")
	require.NoError(t, n.Send(context.Background(), testChange()))

	require.Contains(t, bodies, "/slack")
	require.Contains(t, bodies, "/discord")

	assert.Equal(t, "*ASSIGNMENTS SYNCED*", bodies["/slack"]["text"])
	attachment := bodies["/slack"]["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "Assignments of 'Gemini' changed", attachment["title"])
	assert.Equal(t, "warning", attachment["color"])

	embed := bodies["/discord"]["embeds"].([]any)[0].(map[string]any)
	assert.EqualValues(t, ColorOrange, embed["color"])
	assert.Equal(t, "2025-05-15T08:43:08Z", embed["timestamp"])
	fields := embed["fields"].([]any)
	assert.Equal(t, "#1, #2", fields[0].(map[string]any)["value"])
	assert.Equal(t, "#4", fields[1].(map[string]any)["value"])
	assert.Equal(t, "None", fields[2].(map[string]any)["value"])
}

func TestNotifierSendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewNotifier(server.URL, "")
	err := n.Send(context.Background(), testChange())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: webhook returned status 500")
}

func TestNotifierEnabled(t *testing.T) {
	assert.False(t, NewNotifier("", "").Enabled())
	assert.True(t, NewNotifier("", "https://discord.example/hook").Enabled())
}

func TestPayloadColors(t *testing.T) {
	for _, scenario := range []struct {
		Kind  events.Kind
		Slack string
		Color int
	}{
		{Kind: events.KindAttached, Slack: "good", Color: ColorGreen},
		{Kind: events.KindRestored, Slack: "good", Color: ColorGreen},
		{Kind: events.KindDetached, Slack: "danger", Color: ColorRed},
		{Kind: events.KindUpdated, Slack: "warning", Color: ColorOrange},
	} {
		t.Run(string(scenario.Kind), func(t *testing.T) {
			change := testChange()
			change.Kind = scenario.Kind

			assert.Equal(t, scenario.Slack, slackPayload(change).Attachments[0].Color)
			assert.Equal(t, scenario.Color, discordPayload(change).Embeds[0].Color)
		})
	}
}
