package ledger

import (
	"errors"
	"time"

	"github.com/lib/pq"
)

// Motivos de lançamento no extrato.
const (
	ReasonStake      = "STAKE"
	ReasonPayout     = "PAYOUT"
	ReasonRefund     = "REFUND"
	ReasonAdjustment = "ADJUSTMENT"
)

var (
	// ErrDuplicateTransaction: já existe PAYOUT/REFUND para a mesma aposta.
	// É o índice parcial uq_payout_once_per_wager falando — esperado em
	// retries de liquidação e tratado como no-op pelo chamador.
	ErrDuplicateTransaction = errors.New("duplicate payout/refund for wager")

	ErrParticipantNotFound = errors.New("participant not found")
)

// Transaction é uma linha do extrato append-only.
// O saldo corrente é sempre SUM(amount_cents) — nunca um campo mutável.
type Transaction struct {
	ID            string
	ParticipantID string
	AmountCents   int64 // com sinal
	Reason        string
	WagerID       *string
	RoundNumber   *int
	Year          *int
	CreatedAt     time.Time
}

// IsUniqueViolation identifica violação de unicidade do Postgres (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
