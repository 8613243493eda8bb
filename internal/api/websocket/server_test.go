package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/publisher"
	"github.com/fortuna/diamond/internal/store"
)

func TestBroadcastsOutcomes(t *testing.T) {
	srv := NewServer()
	go srv.Hub().Run()
	t.Cleanup(srv.Hub().Stop)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/games/normalized"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	srv.OnGameOutcome(context.Background(), normalize.Outcome{
		GamePK: 745001,
		Status: normalize.StateReady,
		Rows: &store.GameRows{
			Game:       &store.Game{GamePK: 745001, AwayTeamID: 147, AwayTeamScore: 4, HomeTeamID: 111, HomeTeamScore: 1},
			Linescores: []*store.Linescore{{GamePK: 745001, Inning: 1}},
		},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var summary publisher.GameSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, int64(745001), summary.GamePK)
	assert.Equal(t, "READY", summary.Status)
	assert.Equal(t, 147, summary.WinningTeamID)
	assert.Equal(t, 1, summary.LinescoreRows)
}

func TestHealth(t *testing.T) {
	srv := NewServer()
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/ws/health", nil))
	assert.JSONEq(t, `{"status": "healthy", "clients": 0}`, rec.Body.String())
}

func TestBroadcastAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub()
	hub.Stop()
	for i := 0; i < 1000; i++ {
		hub.Broadcast([]byte("x"))
	}
}
