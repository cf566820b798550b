package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/bet-api/dto"
	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/oddscache"
	"github.com/radieske/settlement-engine/internal/wager"
)

type fakeWagers struct {
	placed   []wager.PlaceParams
	placeErr error
	history  []wager.HistoryItem
}

func (f *fakeWagers) Place(_ context.Context, p wager.PlaceParams) (*wager.Wager, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.placed = append(f.placed, p)
	return &wager.Wager{
		ID: "w-123", ParticipantID: p.ParticipantID, FixtureID: p.FixtureID,
		Selection: p.Selection, StakeCents: p.StakeCents, Odds: 1.85,
		Status: wager.StatusOpen, PlacedAt: time.Now(),
	}, nil
}

func (f *fakeWagers) HistoryByParticipant(context.Context, string, int) ([]wager.HistoryItem, error) {
	return f.history, nil
}

type fakeFixtures struct{ fixtures []fixture.Fixture }

func (f *fakeFixtures) ListByRound(context.Context, int, int) ([]fixture.Fixture, error) {
	return f.fixtures, nil
}

type fakeBalances struct{ balance int64 }

func (f *fakeBalances) CurrentBalance(context.Context, string) (int64, error) {
	return f.balance, nil
}

type fakeOdds struct{ entry *oddscache.Entry }

func (f *fakeOdds) GetCurrent(context.Context, string) (*oddscache.Entry, error) {
	return f.entry, nil
}

func newTestServer(wagers *fakeWagers, odds *fakeOdds) *Server {
	return NewServer(zap.NewNop(), wagers, &fakeFixtures{}, &fakeBalances{balance: 42_00}, odds)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlaceWager(t *testing.T) {
	wagers := &fakeWagers{}
	srv := newTestServer(wagers, &fakeOdds{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/wagers",
		`{"participantId":"p1","fixtureId":"fx1","selection":"home","stake_cents":1000}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp dto.PlaceWagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "w-123", resp.WagerID)
	assert.Equal(t, "OPEN", resp.Status)
	require.NotNil(t, resp.NewBalance)
	assert.Equal(t, int64(42_00), *resp.NewBalance)
	require.Len(t, wagers.placed, 1)
}

func TestPlaceWagerOddsDrift(t *testing.T) {
	wagers := &fakeWagers{}
	odds := &fakeOdds{entry: &oddscache.Entry{FixtureID: "fx1", HomeOdds: 2.40, AwayOdds: 1.60}}
	srv := newTestServer(wagers, odds)

	// cliente viu 1.85 mas a corrente é 2.40: conflito, nada colocado
	rec := doJSON(t, srv.Router(), http.MethodPost, "/wagers",
		`{"participantId":"p1","fixtureId":"fx1","selection":"home","stake_cents":1000,"odds_seen":1.85}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "2.40")
	assert.Empty(t, wagers.placed)

	// dentro da tolerância passa
	rec = doJSON(t, srv.Router(), http.MethodPost, "/wagers",
		`{"participantId":"p1","fixtureId":"fx1","selection":"home","stake_cents":1000,"odds_seen":2.395}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, wagers.placed, 1)
}

func TestPlaceWagerValidation(t *testing.T) {
	srv := newTestServer(&fakeWagers{}, &fakeOdds{})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/wagers", `{notjson`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Router(), http.MethodPost, "/wagers",
		`{"participantId":"p1","fixtureId":"fx1","selection":"home","stake_cents":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceWagerDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{wager.ErrFixtureClosed, http.StatusConflict},
		{wager.ErrOddsUnavailable, http.StatusConflict},
		{wager.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{wager.ErrInvalidSelection, http.StatusBadRequest},
		{fixture.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		srv := newTestServer(&fakeWagers{placeErr: tc.err}, &fakeOdds{})
		rec := doJSON(t, srv.Router(), http.MethodPost, "/wagers",
			`{"participantId":"p1","fixtureId":"fx1","selection":"home","stake_cents":1000}`)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestGetHistory(t *testing.T) {
	payout := int64(18_00)
	wagers := &fakeWagers{history: []wager.HistoryItem{{
		Wager: wager.Wager{
			ID: "w-1", FixtureID: "fx1", Selection: "home",
			StakeCents: 10_00, Odds: 1.8, Status: wager.StatusWon, PayoutCents: &payout,
		},
		HomeTeam: "Broncos", AwayTeam: "Storm",
	}}}
	srv := newTestServer(wagers, &fakeOdds{})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/wagers?participantId=p1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []dto.WagerHistoryItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "WON", items[0].Status)
	assert.Equal(t, "Broncos", items[0].HomeTeam)
	require.NotNil(t, items[0].PayoutCents)
	assert.Equal(t, int64(18_00), *items[0].PayoutCents)

	// sem participantId não tem o que listar
	rec = doJSON(t, srv.Router(), http.MethodGet, "/wagers", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBalance(t *testing.T) {
	srv := newTestServer(&fakeWagers{}, &fakeOdds{})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/balance?participantId=p1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42_00), resp.BalanceCents)

	rec = doJSON(t, srv.Router(), http.MethodGet, "/balance", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFixturesRequiresRound(t *testing.T) {
	srv := newTestServer(&fakeWagers{}, &fakeOdds{})

	rec := doJSON(t, srv.Router(), http.MethodGet, "/fixtures", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Router(), http.MethodGet, "/fixtures?round=5&year=2026", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
