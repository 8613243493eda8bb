package feed

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisCache adapts a bare client to Cache.
type redisCache struct {
	client *redis.Client
}

func (r redisCache) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

const liveFeed = `{
  "gamePk": 745001,
  "gameData": {"status": {"abstractGameState": "Final"}},
  "liveData": {"plays": {"allPlays": [
    {
      "about": {"atBatIndex": 0, "inning": 1, "isTopInning": true},
      "result": {"eventType": "single", "event": "Single"},
      "matchup": {"batter": {"id": 11}},
      "playEvents": [{"index": 0, "playId": "p-0"}, {"index": 1, "playId": "p-1"}],
      "runners": [{
        "movement": {"originBase": null, "start": null, "end": "1B", "outBase": null, "isOut": false},
        "details": {"runner": {"id": 11, "fullName": "Ada Batter"}, "eventType": "single", "event": "Single", "movementReason": null, "playIndex": 1},
        "credits": [{"player": {"id": 99}, "credit": "f_fielded_ball"}]
      }]
    },
    {
      "about": {"atBatIndex": 1, "inning": 1, "halfInning": "bottom"},
      "result": {"eventType": "strikeout"},
      "matchup": {"batter": {"id": 21}}
    }
  ]}}
}`

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord([]byte(liveFeed))
	require.NoError(t, err)

	assert.Equal(t, int64(745001), rec.GamePK())
	assert.True(t, rec.IsFinal())

	plays := rec.Plays()
	require.Len(t, plays, 2)

	first := plays[0]
	assert.Equal(t, 0, first.AtBatIndex)
	assert.True(t, first.IsTopInning)
	assert.Equal(t, int64(11), first.BatterID)
	assert.Equal(t, "p-1", first.PlayIDAt(1))
	assert.Equal(t, "", first.PlayIDAt(7))

	require.Len(t, first.Runners, 1)
	seg := first.Runners[0]
	assert.Equal(t, int64(11), seg.RunnerID)
	assert.Equal(t, "Ada Batter", seg.RunnerName)
	assert.Equal(t, "", seg.StartBase)
	assert.Equal(t, "1B", seg.EndBase)
	assert.Equal(t, 1, seg.PlayIndex)
	require.Len(t, seg.Credits, 1)
	assert.Equal(t, Credit{PlayerID: 99, Credit: "f_fielded_ball"}, seg.Credits[0])

	assert.False(t, plays[1].IsTopInning, "halfInning is used when isTopInning is absent")
	assert.Empty(t, plays[1].Runners)

	_, err = ParseRecord([]byte(`{"gamePk":`))
	assert.Error(t, err)
}

func TestRecordGamePKFallback(t *testing.T) {
	rec, err := ParseRecord([]byte(`{"gameData": {"game": {"pk": 12}}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.GamePK())
}

func TestClient_FetchSchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/schedule", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("sportId"))
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dates": [{"games": [{"gamePk": 3}, {"gamePk": 1}, {"gamePk": 3}]}]}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Logger: quietLogger()})
	pks, err := c.FetchSchedule(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, pks)
}

func TestClient_FetchLiveFeedCachesFinalGames(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/v1.1/game/745001/feed/live", r.URL.Path)
		_, _ = w.Write([]byte(liveFeed))
	}))
	defer srv.Close()

	s := miniredis.RunT(t)
	rc := redisCache{redis.NewClient(&redis.Options{Addr: s.Addr()})}

	c := New(Options{BaseURL: srv.URL, Cache: rc, CacheTTL: time.Hour, Logger: quietLogger()})

	rec, err := c.FetchLiveFeed(context.Background(), 745001)
	require.NoError(t, err)
	assert.Equal(t, int64(745001), rec.GamePK())
	assert.True(t, s.Exists(CacheKey(745001)))

	rec, err = c.FetchLiveFeed(context.Background(), 745001)
	require.NoError(t, err)
	assert.Equal(t, int64(745001), rec.GamePK())
	assert.Equal(t, int32(1), hits.Load(), "second fetch is served from cache")
}

func TestClient_FetchLiveFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Logger: quietLogger()})
	_, err := c.FetchLiveFeed(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

type stubFetcher map[int64]error

func (f stubFetcher) FetchLiveFeed(_ context.Context, pk int64) (*Record, error) {
	if err := f[pk]; err != nil {
		return nil, err
	}
	return ParseRecord([]byte(`{"gamePk": ` + strconv.FormatInt(pk, 10) + `}`))
}

func TestGamePKSource(t *testing.T) {
	boom := errors.New("boom")
	src := NewGamePKSource(stubFetcher{2: boom}, []int64{1, 2, 3})
	ctx := context.Background()
	assert.Equal(t, 3, src.Len())

	rec, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.GamePK())

	_, err = src.Next(ctx)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(2), fe.GamePK)
	assert.ErrorIs(t, err, boom)

	rec, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.GamePK())

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "200.json"), []byte(`{"gamePk": 200}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "100.json"), []byte(`{"gamePk": 100}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "300.json"), []byte(`{"gamePk": `), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o644))

	src, err := NewDirSource(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	ctx := context.Background()
	rec, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.GamePK())

	rec, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), rec.GamePK())

	_, err = src.Next(ctx)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(300), fe.GamePK)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSliceSource(t *testing.T) {
	a, _ := ParseRecord([]byte(`{"gamePk": 1}`))
	src := NewSliceSource(a)
	rec, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Same(t, a, rec)
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
