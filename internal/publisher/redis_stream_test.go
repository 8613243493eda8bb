package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/diamond/internal/baseball"
	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/store"
)

func newTestPublisher(t *testing.T) (*RedisStreamPublisher, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStreamPublisher(client, nil), client
}

func readyOutcome() normalize.Outcome {
	game := &store.Game{GamePK: 745001, AwayTeamID: 147, AwayTeamScore: 2, HomeTeamID: 111, HomeTeamScore: 3}
	return normalize.Outcome{
		GamePK: 745001,
		Status: normalize.StateReady,
		Rows: &store.GameRows{
			Game: game,
			Linescores: []*store.Linescore{
				{GamePK: 745001, Inning: 1, Half: baseball.HalfTop, BattingTeamID: 147, Runs: 2, BattingTeamScore: 2, BattingTeamScoreDiff: 2},
				{GamePK: 745001, Inning: 1, Half: baseball.HalfBottom, BattingTeamID: 111, Runs: 3, BattingTeamScore: 3, BattingTeamScoreDiff: 1},
			},
			RunnerPlays: []*store.RunnerPlay{{GamePK: 745001, RunnerID: 1}, {GamePK: 745001, RunnerID: 2}},
		},
	}
}

func TestSummarizeReadyGame(t *testing.T) {
	s := Summarize(readyOutcome())

	assert.Equal(t, "READY", s.Status)
	assert.Empty(t, s.Reason)
	assert.Equal(t, 2, s.LinescoreRows)
	assert.Equal(t, 2, s.RunnerPlayRows)
	assert.Equal(t, 111, s.WinningTeamID)
	assert.Equal(t, []ComebackHalf{{Inning: 1, Half: "bottom"}}, s.ComebackHalves)
}

func TestSummarizeFailedGame(t *testing.T) {
	o := normalize.Outcome{
		GamePK: 9,
		Status: normalize.StateFailed,
		Err:    &normalize.GameError{GamePK: 9, Kind: normalize.ErrFetch, Err: fmt.Errorf("404")},
	}
	s := Summarize(o)

	assert.Equal(t, "FAILED", s.Status)
	assert.Equal(t, "FetchFailure", s.Reason)
	assert.Contains(t, s.Error, "404")
	assert.Zero(t, s.LinescoreRows)
}

func TestOnGameOutcomePublishes(t *testing.T) {
	pub, client := newTestPublisher(t)
	ctx := context.Background()

	pub.OnGameOutcome(ctx, readyOutcome())

	entries, err := client.XRange(ctx, NormalizedStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	values := entries[0].Values
	assert.Equal(t, "745001", values["gamepk"])
	assert.Equal(t, "READY", values["status"])

	var decoded GameSummary
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, Summarize(readyOutcome()), decoded)
}
