package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/domain"
)

type fakePlayerStore struct {
	players   []*domain.Player
	histories map[int64]*domain.RatingHistory
	err       error
}

func (f *fakePlayerStore) ListPlayers(_ context.Context) ([]*domain.Player, error) {
	return f.players, f.err
}

func (f *fakePlayerStore) LoadHistory(_ context.Context, playerID int64) (*domain.RatingHistory, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.histories[playerID], nil
}

type fakeForecastStore struct {
	forecasts map[int64]*domain.Forecast
	err       error
}

func (f *fakeForecastStore) LoadForecast(_ context.Context, playerID int64, _ domain.ModelKind) (*domain.Forecast, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.forecasts[playerID], nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(_ context.Context) error {
	return f.err
}

func testServer(players *fakePlayerStore, forecasts *fakeForecastStore, db, cache *fakePinger) *Server {
	var cachePing Pinger
	if cache != nil {
		cachePing = cache
	}
	return New(Config{Port: 0}, players, forecasts, db, cachePing, zap.NewNop())
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthOK(t *testing.T) {
	s := testServer(&fakePlayerStore{}, &fakeForecastStore{}, &fakePinger{}, &fakePinger{})

	rec := doRequest(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthPostgresDown(t *testing.T) {
	s := testServer(&fakePlayerStore{}, &fakeForecastStore{}, &fakePinger{err: errors.New("down")}, nil)

	rec := doRequest(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthRedisDownIsDegradedNotFatal(t *testing.T) {
	s := testServer(&fakePlayerStore{}, &fakeForecastStore{}, &fakePinger{}, &fakePinger{err: errors.New("down")})

	rec := doRequest(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListPlayers(t *testing.T) {
	store := &fakePlayerStore{players: []*domain.Player{
		{ID: 1, Name: "One"},
		{ID: 2, Name: "Two"},
	}}
	s := testServer(store, &fakeForecastStore{}, &fakePinger{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/players")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestHistoryNotFound(t *testing.T) {
	s := testServer(&fakePlayerStore{histories: map[int64]*domain.RatingHistory{}}, &fakeForecastStore{}, &fakePinger{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/players/99/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryBadID(t *testing.T) {
	s := testServer(&fakePlayerStore{}, &fakeForecastStore{}, &fakePinger{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/players/not-a-number/history")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryFound(t *testing.T) {
	store := &fakePlayerStore{histories: map[int64]*domain.RatingHistory{
		7: {
			PlayerID:   7,
			PlayerName: "Seven",
			Observations: []domain.RatingObservation{
				{PlayerID: 7, ObservedOn: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Rating: 8.5},
			},
		},
	}}
	s := testServer(store, &fakeForecastStore{}, &fakePinger{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/players/7/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var history domain.RatingHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, "Seven", history.PlayerName)
	assert.Equal(t, 1, history.Len())
}

func TestForecastUnknownModelRejected(t *testing.T) {
	s := testServer(&fakePlayerStore{}, &fakeForecastStore{}, &fakePinger{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/players/7/forecast?model=oracle")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastFound(t *testing.T) {
	forecasts := &fakeForecastStore{forecasts: map[int64]*domain.Forecast{
		7: {
			PlayerID:      7,
			Model:         domain.ModelGBRT,
			HorizonMonths: 18,
			Trend:         domain.TrendImproving,
		},
	}}
	s := testServer(&fakePlayerStore{}, forecasts, &fakePinger{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/players/7/forecast")
	require.Equal(t, http.StatusOK, rec.Code)

	var fc domain.Forecast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, domain.ModelGBRT, fc.Model)
	assert.Equal(t, domain.TrendImproving, fc.Trend)
}

func TestHealthzBypassesRateLimit(t *testing.T) {
	s := New(Config{RateLimitRPS: 0.001, RateLimitBurst: 1},
		&fakePlayerStore{}, &fakeForecastStore{}, &fakePinger{}, nil, zap.NewNop())

	// Burn the single token, then confirm the API throttles while health
	// stays reachable from the same client.
	first := doRequest(s, http.MethodGet, "/api/players")
	require.Equal(t, http.StatusOK, first.Code)

	throttled := doRequest(s, http.MethodGet, "/api/players")
	require.Equal(t, http.StatusTooManyRequests, throttled.Code)

	health := doRequest(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestShutdownStopsRateLimiterSweeper(t *testing.T) {
	s := testServer(&fakePlayerStore{}, &fakeForecastStore{}, &fakePinger{}, nil)

	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case <-s.limiter.exited:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine did not exit after Shutdown")
	}
}

func TestForecastNotFound(t *testing.T) {
	s := testServer(&fakePlayerStore{}, &fakeForecastStore{forecasts: map[int64]*domain.Forecast{}}, &fakePinger{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/players/7/forecast")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
