package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/diamond/internal/backfill"
	"github.com/fortuna/diamond/internal/cache"
	"github.com/fortuna/diamond/internal/normalize"
	"github.com/fortuna/diamond/internal/store"
)

type fakeJobs struct {
	got    *backfill.Request
	status *backfill.StatusSummary
}

func (f *fakeJobs) Enqueue(_ context.Context, req backfill.Request) (*backfill.Job, error) {
	if _, err := req.DeriveType(); err != nil {
		return nil, err
	}
	f.got = &req
	return &backfill.Job{JobID: "j1", JobType: backfill.JobTypeGame, Status: backfill.JobStatusQueued}, nil
}

func (f *fakeJobs) GetStatus(context.Context) (*backfill.StatusSummary, error) {
	return f.status, nil
}

type fakeGames struct {
	calls  int
	status map[int64]*store.GameStatus
}

func (f *fakeGames) GetGameStatus(_ context.Context, pk int64) (*store.GameStatus, error) {
	f.calls++
	if s, ok := f.status[pk]; ok {
		return s, nil
	}
	return &store.GameStatus{GamePK: pk}, nil
}

type fakeStates map[int64]normalize.GameState

func (f fakeStates) State(pk int64) (normalize.GameState, bool) {
	s, ok := f[pk]
	return s, ok
}

func serve(t *testing.T, deps Deps, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	srv := NewServer("0", deps)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, Deps{Health: map[string]func(context.Context) error{
		"postgres": func(context.Context) error { return nil },
	}}, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	rec = serve(t, Deps{Health: map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}}, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["checks"].(map[string]interface{})["redis"])
}

func TestNormalizeRequest(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   int
		assert func(t *testing.T, req *backfill.Request)
	}{
		{
			name: "games",
			body: `{"gamepks": [745001], "gamepk": 745002, "dry_run": true}`,
			code: http.StatusAccepted,
			assert: func(t *testing.T, req *backfill.Request) {
				assert.Equal(t, []int64{745001, 745002}, req.GamePKs)
				assert.True(t, req.DryRun)
			},
		},
		{
			name: "single date",
			body: `{"date": "2024-06-01"}`,
			code: http.StatusAccepted,
			assert: func(t *testing.T, req *backfill.Request) {
				require.NotNil(t, req.StartDate)
				assert.Equal(t, *req.StartDate, *req.EndDate)
				assert.Equal(t, time.June, req.StartDate.Month())
			},
		},
		{name: "bad date", body: `{"start_date": "06/01/2024", "end_date": "2024-06-02"}`, code: http.StatusBadRequest},
		{name: "negative pk", body: `{"gamepk": -4}`, code: http.StatusBadRequest},
		{name: "nothing to do", body: `{}`, code: http.StatusBadRequest},
		{name: "not json", body: `gamepk=1`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{}
			rec := serve(t, Deps{Jobs: jobs}, "POST", "/api/v1/normalize", tt.body)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.assert != nil {
				require.NotNil(t, jobs.got)
				tt.assert(t, jobs.got)
				assert.Equal(t, "j1", decode(t, rec)["job"].(map[string]interface{})["job_id"])
			}
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	jobs := &fakeJobs{status: &backfill.StatusSummary{
		ActiveJob: &backfill.Job{
			JobID:         "run",
			Status:        backfill.JobStatusRunning,
			StatusMessage: sql.NullString{String: "Normalized 3/10 games", Valid: true},
		},
		History: []*backfill.Job{{JobID: "run"}, {JobID: "old"}},
	}}

	rec := serve(t, Deps{Jobs: jobs}, "GET", "/api/v1/normalize/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "Normalized 3/10 games", body["message"])
	assert.Len(t, body["history"], 2)
}

func TestGameStatusUsesCache(t *testing.T) {
	s := miniredis.RunT(t)
	rc := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	games := &fakeGames{status: map[int64]*store.GameStatus{
		745001: {GamePK: 745001, Stored: true, DetailedState: "Final", LinescoreRows: 18, RunnerPlayRows: 60},
	}}
	deps := Deps{Games: games, Cache: rc, States: fakeStates{745001: normalize.StateReady}}

	for i := 0; i < 2; i++ {
		rec := serve(t, deps, "GET", "/api/v1/games/745001/status", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["stored"])
		assert.Equal(t, 18.0, body["linescore_rows"])
		assert.Equal(t, "READY", body["state"])
	}
	assert.Equal(t, 1, games.calls)
	assert.True(t, s.Exists(cache.GameStatusKey(745001)))
}

func TestGameStatusNotFound(t *testing.T) {
	rec := serve(t, Deps{Games: &fakeGames{}}, "GET", "/api/v1/games/1/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, Deps{Games: &fakeGames{}, States: fakeStates{1: normalize.StateFailed}}, "GET", "/api/v1/games/1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FAILED", decode(t, rec)["state"])
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
