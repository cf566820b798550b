package schedule

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/ledger"
	"github.com/radieske/settlement-engine/internal/notify"
)

// Valor padrão creditado a cada participante na virada de rodada.
const DefaultBonusCents = 10_00

// LedgerStore é a fatia do extrato usada pelo bônus.
type LedgerStore interface {
	Post(ctx context.Context, t *ledger.Transaction) (string, error)
	CurrentBalance(ctx context.Context, participantID string) (int64, error)
	ListActiveParticipants(ctx context.Context) ([]string, error)
}

// Broadcaster publica o saldo novo após o crédito.
type Broadcaster interface {
	PublishBalanceUpdate(ctx context.Context, u notify.BalanceUpdate) error
}

// Bonus credita o bônus de rodada pra todos os participantes ativos.
// A unicidade (participante, rodada, ano) fica no índice parcial do
// banco: rodar duas vezes credita uma vez.
type Bonus struct {
	Log    *zap.Logger
	Ledger LedgerStore
	Notify Broadcaster // opcional

	AmountCents int64 // 0 usa DefaultBonusCents
}

// BonusReport resume uma aplicação de bônus.
type BonusReport struct {
	RoundNumber int
	Year        int
	Credited    int
	Skipped     int // já creditado por execução anterior
	Failed      int
}

// Apply credita o bônus da rodada. Duplicata é no-op contado como skip;
// outras falhas não interrompem os demais participantes.
func (b *Bonus) Apply(ctx context.Context, round, year int) (*BonusReport, error) {
	amount := b.AmountCents
	if amount <= 0 {
		amount = DefaultBonusCents
	}

	ids, err := b.Ledger.ListActiveParticipants(ctx)
	if err != nil {
		return nil, err
	}

	report := &BonusReport{RoundNumber: round, Year: year}
	for _, pid := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		r, y := round, year
		_, err := b.Ledger.Post(ctx, &ledger.Transaction{
			ParticipantID: pid,
			AmountCents:   amount,
			Reason:        ledger.ReasonAdjustment,
			RoundNumber:   &r,
			Year:          &y,
		})
		if err != nil {
			if errors.Is(err, ledger.ErrDuplicateTransaction) || ledger.IsUniqueViolation(err) {
				report.Skipped++
				continue
			}
			b.Log.Warn("bônus falhou",
				zap.String("participant_id", pid), zap.Error(err))
			report.Failed++
			continue
		}
		report.Credited++

		if b.Notify != nil {
			if bal, err := b.Ledger.CurrentBalance(ctx, pid); err == nil {
				if err := b.Notify.PublishBalanceUpdate(ctx, notify.BalanceUpdate{
					ParticipantID:   pid,
					NewBalanceCents: bal,
					Reason:          "round_bonus",
				}); err != nil {
					b.Log.Warn("balance broadcast failed", zap.Error(err))
				}
			}
		}
	}
	return report, nil
}
