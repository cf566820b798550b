package events

import "time"

// Evento publicado no tópico "fixture_final" quando um fixture vira FINAL
// e entra na fila de liquidação.
type FixtureFinal struct {
	FixtureID   string    `json:"fixture_id"`
	SourceID    string    `json:"source_id"`
	RoundNumber int       `json:"round_number"`
	Year        int       `json:"year"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	HomeScore   int       `json:"home_score"`
	AwayScore   int       `json:"away_score"`
	Outcome     string    `json:"outcome"` // "home" | "away" | "draw"
	Ts          time.Time `json:"ts"`
}
