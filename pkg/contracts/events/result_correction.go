package events

import "time"

// Evento publicado quando a fonte externa altera o placar de um fixture já
// FINAL. O motor nunca re-liquida automaticamente: apostas liquidadas são
// imutáveis, então o evento fica como gatilho de intervenção manual.
type ResultCorrection struct {
	FixtureID    string    `json:"fixture_id"`
	SourceID     string    `json:"source_id"`
	OldHomeScore int       `json:"old_home_score"`
	OldAwayScore int       `json:"old_away_score"`
	NewHomeScore int       `json:"new_home_score"`
	NewAwayScore int       `json:"new_away_score"`
	SourceHash   string    `json:"source_hash"`
	Ts           time.Time `json:"ts"`
}
