package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Erros de fetch. O gateway nunca faz retry — a política de retry é do
// chamador (o próximo tick do scheduler).
var (
	ErrUnreachable = errors.New("results source unreachable")
	ErrMalformed   = errors.New("results source returned malformed data")
	ErrRateLimited = errors.New("results source rate limited")
)

// Client busca snapshots de rodada na fonte externa de resultados.
// Sem estado, sem mutação de store: só a chamada de rede.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewClient cria o cliente com timeout e limitador próprios — a fonte
// derruba scrapers agressivos, então no máximo 1 req/s com burst 3.
func NewClient(base string, log *zap.Logger) *Client {
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		log:     log,
	}
}

// drawResponse espelha o JSON da fonte.
type drawResponse struct {
	RoundNumber int           `json:"round_number"`
	Year        int           `json:"year"`
	Fixtures    []drawFixture `json:"fixtures"`
}

type drawFixture struct {
	SourceID   string  `json:"source_id"`
	HomeTeam   string  `json:"home_team"`
	AwayTeam   string  `json:"away_team"`
	Venue      string  `json:"venue"`
	KickoffAt  string  `json:"kickoff_at"` // RFC3339
	MatchMode  string  `json:"match_mode"`
	MatchState string  `json:"match_state"`
	HomeScore  *int    `json:"home_score"`
	AwayScore  *int    `json:"away_score"`
	HomeOdds   float64 `json:"home_odds"`
	AwayOdds   float64 `json:"away_odds"`
}

// Fetch busca e normaliza o snapshot de uma rodada.
func (c *Client) Fetch(ctx context.Context, round, year int) (*Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	url := fmt.Sprintf("%s/draw?round=%d&season=%d", c.base, round, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// timeout e falha de conexão caem aqui — nunca viram crash
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: http %d", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: http %d", ErrMalformed, resp.StatusCode)
	}

	var body drawResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	snap := &Snapshot{
		RoundNumber: round,
		Year:        year,
		FetchedAt:   time.Now().UTC(),
	}
	for _, f := range body.Fixtures {
		if f.SourceID == "" || f.HomeTeam == "" || f.AwayTeam == "" {
			c.log.Warn("fixture sem identificação no snapshot, ignorando",
				zap.String("source_id", f.SourceID))
			continue
		}
		kickoff, err := time.Parse(time.RFC3339, f.KickoffAt)
		if err != nil {
			c.log.Warn("kickoff inválido no snapshot, ignorando",
				zap.String("source_id", f.SourceID), zap.String("kickoff", f.KickoffAt))
			continue
		}
		hint := normalizeHint(f.MatchMode, f.MatchState)

		// Fonte diz fulltime mas sem placar completo: não dá pra liquidar,
		// rebaixa pra unknown e deixa o próximo tick resolver.
		if hint == HintFullTime && (f.HomeScore == nil || f.AwayScore == nil) {
			c.log.Warn("fulltime sem placar completo",
				zap.String("source_id", f.SourceID))
			hint = HintUnknown
		}

		snap.Records = append(snap.Records, Record{
			SourceID:   f.SourceID,
			HomeTeam:   f.HomeTeam,
			AwayTeam:   f.AwayTeam,
			Venue:      f.Venue,
			KickoffAt:  kickoff.UTC(),
			StatusHint: hint,
			HomeScore:  f.HomeScore,
			AwayScore:  f.AwayScore,
			HomeOdds:   f.HomeOdds,
			AwayOdds:   f.AwayOdds,
		})
	}

	return snap, nil
}
