package dto

import "time"

type PlaceWagerRequest struct {
	ParticipantID string  `json:"participantId"`
	FixtureID     string  `json:"fixtureId"`
	Selection     string  `json:"selection"` // "home" | "away"
	StakeCents    int64   `json:"stake_cents"`
	OddsSeen      float64 `json:"odds_seen"` // odd que o cliente viu
}

type PlaceWagerResponse struct {
	WagerID    string  `json:"wagerId"`
	Status     string  `json:"status"` // OPEN
	Odds       float64 `json:"odds"`
	NewBalance *int64  `json:"new_balance,omitempty"`
	Message    string  `json:"message,omitempty"`
}

type WagerHistoryItem struct {
	WagerID     string     `json:"wagerId"`
	FixtureID   string     `json:"fixtureId"`
	HomeTeam    string     `json:"home_team"`
	AwayTeam    string     `json:"away_team"`
	Selection   string     `json:"selection"`
	StakeCents  int64      `json:"stake_cents"`
	Odds        float64    `json:"odds"`
	Status      string     `json:"status"`
	PayoutCents *int64     `json:"payout_cents,omitempty"`
	PlacedAt    time.Time  `json:"placed_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

type BalanceResponse struct {
	ParticipantID string `json:"participantId"`
	BalanceCents  int64  `json:"balance_cents"`
}

type FixtureItem struct {
	FixtureID   string    `json:"fixtureId"`
	RoundNumber int       `json:"round_number"`
	Year        int       `json:"year"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Venue       string    `json:"venue,omitempty"`
	KickoffAt   time.Time `json:"kickoff_at"`
	HomeOdds    float64   `json:"home_odds,omitempty"`
	AwayOdds    float64   `json:"away_odds,omitempty"`
	Status      string    `json:"status"`
	HomeScore   *int      `json:"home_score,omitempty"`
	AwayScore   *int      `json:"away_score,omitempty"`
}
