package dto

// Formato de resposta do endpoint /draw — o mesmo que o gateway consome.
type DrawResponse struct {
	RoundNumber int           `json:"round_number"`
	Year        int           `json:"year"`
	Fixtures    []DrawFixture `json:"fixtures"`
}

type DrawFixture struct {
	SourceID   string  `json:"source_id"`
	HomeTeam   string  `json:"home_team"`
	AwayTeam   string  `json:"away_team"`
	Venue      string  `json:"venue"`
	KickoffAt  string  `json:"kickoff_at"` // RFC3339
	MatchMode  string  `json:"match_mode"` // "pre" | "live" | "post"
	MatchState string  `json:"match_state"`
	HomeScore  *int    `json:"home_score"`
	AwayScore  *int    `json:"away_score"`
	HomeOdds   float64 `json:"home_odds"`
	AwayOdds   float64 `json:"away_odds"`
}
