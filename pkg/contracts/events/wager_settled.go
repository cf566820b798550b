package events

import "time"

// Evento emitido pelo settlement após liquidar uma aposta.
type WagerSettled struct {
	WagerID       string    `json:"wagerId"`
	ParticipantID string    `json:"participantId"`
	FixtureID     string    `json:"fixtureId"`
	Status        string    `json:"status"` // "WON" | "LOST" | "PUSHED"
	PayoutCents   int64     `json:"payoutCents"`
	Ts            time.Time `json:"ts"`
}
