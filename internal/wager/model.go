package wager

import (
	"errors"
	"time"
)

// Status de uma aposta. Depois de sair de OPEN a aposta é imutável.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusWon    Status = "WON"
	StatusLost   Status = "LOST"
	StatusVoid   Status = "VOID"
	StatusPushed Status = "PUSHED"
)

var (
	ErrNotFound            = errors.New("wager not found")
	ErrAlreadySettled      = errors.New("wager already settled")
	ErrFixtureClosed       = errors.New("fixture closed for wagers")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidSelection    = errors.New("invalid selection")
	ErrOddsUnavailable     = errors.New("odds unavailable for selection")
)

// Wager é o modelo persistido no Postgres.
type Wager struct {
	ID            string
	ParticipantID string
	FixtureID     string
	Selection     string // "home" | "away"
	StakeCents    int64
	Odds          float64 // odd no momento da colocação
	Status        Status
	PayoutCents   *int64
	PlacedAt      time.Time
	SettledAt     *time.Time
}
