package fixture

import (
	"errors"
	"time"
)

// Status do ciclo de vida de um fixture.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinal      Status = "FINAL"
	StatusPostponed  Status = "POSTPONED"
	StatusVoid       Status = "VOID"
)

// Resultados canônicos de um fixture FINAL.
const (
	OutcomeHome = "home"
	OutcomeAway = "away"
	OutcomeDraw = "draw"
)

var (
	ErrNotFound = errors.New("fixture not found")

	// ErrStaleTransition indica que o status mudou entre a leitura e o
	// update guardado (outro worker aplicou a transição primeiro).
	ErrStaleTransition = errors.New("fixture status changed concurrently")
)

// Fixture é o modelo persistido no Postgres.
// source_hash é o SyncCursor: a versão do dado externo aplicada por último.
type Fixture struct {
	ID           string
	SourceID     string
	RoundNumber  int
	Year         int
	HomeTeam     string
	AwayTeam     string
	Venue        string
	KickoffAt    time.Time
	HomeOdds     float64 // 0 = indisponível
	AwayOdds     float64
	Status       Status
	HomeScore    *int
	AwayScore    *int
	SourceHash   string
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Outcome devolve o resultado canônico de um fixture FINAL.
// Retorna "" se o placar não estiver presente.
func (f *Fixture) Outcome() string {
	if f.Status != StatusFinal || f.HomeScore == nil || f.AwayScore == nil {
		return ""
	}
	switch {
	case *f.HomeScore > *f.AwayScore:
		return OutcomeHome
	case *f.AwayScore > *f.HomeScore:
		return OutcomeAway
	default:
		return OutcomeDraw
	}
}

// OddsFor devolve a odd corrente para uma seleção ("home"/"away").
func (f *Fixture) OddsFor(selection string) (float64, bool) {
	switch selection {
	case OutcomeHome:
		return f.HomeOdds, f.HomeOdds > 1.0
	case OutcomeAway:
		return f.AwayOdds, f.AwayOdds > 1.0
	}
	return 0, false
}
