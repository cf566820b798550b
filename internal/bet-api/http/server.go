package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/bet-api/dto"
	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/ledger"
	"github.com/radieske/settlement-engine/internal/oddscache"
	"github.com/radieske/settlement-engine/internal/wager"
)

// Tolerância de drift entre a odd que o cliente viu e a corrente.
const oddsTolerance = 0.01

// WagerStore é a fatia de apostas usada pela API.
type WagerStore interface {
	Place(ctx context.Context, params wager.PlaceParams) (*wager.Wager, error)
	HistoryByParticipant(ctx context.Context, participantID string, limit int) ([]wager.HistoryItem, error)
}

// FixtureReader lista a grade pra consulta.
type FixtureReader interface {
	ListByRound(ctx context.Context, round, year int) ([]fixture.Fixture, error)
}

// BalanceReader deriva o saldo do extrato.
type BalanceReader interface {
	CurrentBalance(ctx context.Context, participantID string) (int64, error)
}

// OddsReader consulta as odds correntes no cache.
type OddsReader interface {
	GetCurrent(ctx context.Context, fixtureID string) (*oddscache.Entry, error)
}

type Server struct {
	log      *zap.Logger
	wagers   WagerStore
	fixtures FixtureReader
	balances BalanceReader
	odds     OddsReader // opcional
}

func NewServer(log *zap.Logger, w WagerStore, f FixtureReader, b BalanceReader, o OddsReader) *Server {
	return &Server{log: log, wagers: w, fixtures: f, balances: b, odds: o}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wagers", s.wagersHandler) // POST place | GET history
	mux.HandleFunc("/balance", s.getBalance)   // GET ?participantId=
	mux.HandleFunc("/fixtures", s.getFixtures) // GET ?round=&year=
	return mux
}

func (s *Server) wagersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.placeWager(w, r)
	case http.MethodGet:
		s.getHistory(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.ParticipantID == "" || req.FixtureID == "" || req.Selection == "" || req.StakeCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// 1) Valida a odd vista contra a corrente no cache; drift vira 409
	// com a odd atual. Cache miss deixa passar — o banco decide.
	if s.odds != nil && req.OddsSeen > 0 {
		if cur, err := s.odds.GetCurrent(r.Context(), req.FixtureID); err == nil && cur != nil {
			current := cur.HomeOdds
			if req.Selection == fixture.OutcomeAway {
				current = cur.AwayOdds
			}
			if current > 1.0 && math.Abs(current-req.OddsSeen) > oddsTolerance {
				http.Error(w, "odds changed; current="+strconv.FormatFloat(current, 'f', 2, 64),
					http.StatusConflict)
				return
			}
		}
	}

	// 2) Coloca a aposta (transação única: saldo + aposta + STAKE)
	placed, err := s.wagers.Place(r.Context(), wager.PlaceParams{
		ParticipantID: req.ParticipantID,
		FixtureID:     req.FixtureID,
		Selection:     req.Selection,
		StakeCents:    req.StakeCents,
	})
	if err != nil {
		s.writePlaceError(w, err)
		return
	}

	resp := dto.PlaceWagerResponse{
		WagerID: placed.ID,
		Status:  string(placed.Status),
		Odds:    placed.Odds,
	}
	if bal, err := s.balances.CurrentBalance(r.Context(), req.ParticipantID); err == nil {
		resp.NewBalance = &bal
	}
	writeJSON(w, http.StatusCreated, resp)
}

// writePlaceError traduz os erros de domínio em status HTTP.
func (s *Server) writePlaceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wager.ErrInvalidSelection):
		http.Error(w, "invalid selection", http.StatusBadRequest)
	case errors.Is(err, fixture.ErrNotFound), errors.Is(err, ledger.ErrParticipantNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, wager.ErrFixtureClosed):
		http.Error(w, "fixture closed for wagers", http.StatusConflict)
	case errors.Is(err, wager.ErrOddsUnavailable):
		http.Error(w, "odds unavailable", http.StatusConflict)
	case errors.Is(err, wager.ErrInsufficientBalance):
		http.Error(w, "insufficient balance", http.StatusUnprocessableEntity)
	default:
		s.log.Error("place wager failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	pid := r.URL.Query().Get("participantId")
	if pid == "" {
		http.Error(w, "participantId required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := s.wagers.HistoryByParticipant(r.Context(), pid, limit)
	if err != nil {
		s.log.Error("history failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]dto.WagerHistoryItem, 0, len(items))
	for _, h := range items {
		out = append(out, dto.WagerHistoryItem{
			WagerID:     h.ID,
			FixtureID:   h.FixtureID,
			HomeTeam:    h.HomeTeam,
			AwayTeam:    h.AwayTeam,
			Selection:   h.Selection,
			StakeCents:  h.StakeCents,
			Odds:        h.Odds,
			Status:      string(h.Status),
			PayoutCents: h.PayoutCents,
			PlacedAt:    h.PlacedAt,
			SettledAt:   h.SettledAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pid := r.URL.Query().Get("participantId")
	if pid == "" {
		http.Error(w, "participantId required", http.StatusBadRequest)
		return
	}
	bal, err := s.balances.CurrentBalance(r.Context(), pid)
	if err != nil {
		s.log.Error("balance failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{ParticipantID: pid, BalanceCents: bal})
}

func (s *Server) getFixtures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	round, err := strconv.Atoi(r.URL.Query().Get("round"))
	if err != nil || round < 1 {
		http.Error(w, "round required", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		http.Error(w, "year required", http.StatusBadRequest)
		return
	}

	fixtures, err := s.fixtures.ListByRound(r.Context(), round, year)
	if err != nil {
		s.log.Error("fixtures failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]dto.FixtureItem, 0, len(fixtures))
	for i := range fixtures {
		f := &fixtures[i]
		out = append(out, dto.FixtureItem{
			FixtureID:   f.ID,
			RoundNumber: f.RoundNumber,
			Year:        f.Year,
			HomeTeam:    f.HomeTeam,
			AwayTeam:    f.AwayTeam,
			Venue:       f.Venue,
			KickoffAt:   f.KickoffAt,
			HomeOdds:    f.HomeOdds,
			AwayOdds:    f.AwayOdds,
			Status:      string(f.Status),
			HomeScore:   f.HomeScore,
			AwayScore:   f.AwayScore,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
