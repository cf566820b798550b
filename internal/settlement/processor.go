package settlement

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/ledger"
	"github.com/radieske/settlement-engine/internal/lease"
	"github.com/radieske/settlement-engine/internal/notify"
	"github.com/radieske/settlement-engine/internal/wager"
	"github.com/radieske/settlement-engine/pkg/contracts/events"
)

var (
	// ErrNotSettleable: fixture ainda não é FINAL nem VOID.
	ErrNotSettleable = errors.New("fixture not settleable")

	// ErrAlreadyRunning: outro worker está liquidando o mesmo fixture.
	ErrAlreadyRunning = errors.New("settlement already running for fixture")

	// ErrPartialSettlement: parte das apostas falhou; o fixture continua
	// elegível pra retry porque as que falharam seguem OPEN.
	ErrPartialSettlement = errors.New("partial settlement failure")
)

// Tempo máximo de posse do lease por fixture. Expirável de propósito:
// settle é idempotente, então um lease órfão só atrasa, não corrompe.
const settleLeaseTTL = 30 * time.Second

// FixtureStore é o que o settlement precisa do Fixture Store.
type FixtureStore interface {
	GetByID(ctx context.Context, id string) (*fixture.Fixture, error)
}

// WagerStore é o que o settlement precisa do Wager Ledger.
type WagerStore interface {
	ListOpenByFixture(ctx context.Context, fixtureID string) ([]wager.Wager, error)
	SettleOne(ctx context.Context, s wager.Settlement) error
}

// BalanceReader deriva o saldo corrente pro broadcast pós-liquidação.
type BalanceReader interface {
	CurrentBalance(ctx context.Context, participantID string) (int64, error)
}

// Broadcaster publica o novo saldo do participante (Redis Pub/Sub).
type Broadcaster interface {
	PublishBalanceUpdate(ctx context.Context, u notify.BalanceUpdate) error
}

// Publisher emite o evento de aposta liquidada (Kafka).
type Publisher interface {
	PublishWagerSettled(ctx context.Context, e events.WagerSettled) error
}

// Processor liquida todas as apostas OPEN de um fixture finalizado.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log      *zap.Logger
	Fixtures FixtureStore
	Wagers   WagerStore
	Balances BalanceReader
	Lease    lease.Lease
	Notify   Broadcaster // opcional
	Publ     Publisher   // opcional

	OnSettled func(status string) // métricas por desfecho
	OnError   func(stage string)  // métricas por fase
}

// Report resume uma chamada de settle — observabilidade, não correção.
type Report struct {
	FixtureID string
	Outcome   string // "home" | "away" | "draw" | "void"
	Settled   int
	Skipped   int // já liquidadas por outra execução
	FailedIDs []string
}

// Settle liquida o fixture. Idempotente e seguro pra retry: apostas já
// não-OPEN ficam fora da query, payout duplicado é barrado pelo banco.
// Uma aposta que falha não derruba as demais.
func (p *Processor) Settle(ctx context.Context, fixtureID string) (*Report, error) {
	f, err := p.Fixtures.GetByID(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	if f.Status != fixture.StatusFinal && f.Status != fixture.StatusVoid {
		return nil, ErrNotSettleable
	}

	// Serialização por fixture: acquire-or-skip, nunca bloqueia.
	token, err := p.Lease.Acquire(ctx, "lease:settle:"+fixtureID, settleLeaseTTL)
	if err != nil {
		if errors.Is(err, lease.ErrNotAcquired) {
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}
	defer p.Lease.Release(ctx, "lease:settle:"+fixtureID, token)

	open, err := p.Wagers.ListOpenByFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}

	report := &Report{FixtureID: fixtureID, Outcome: outcomeOf(f)}
	if len(open) == 0 {
		// já liquidado (ou nunca houve aposta) — sucesso trivial
		return report, nil
	}

	for _, w := range open {
		s := decide(f, &w)
		if err := p.Wagers.SettleOne(ctx, s); err != nil {
			switch {
			case errors.Is(err, wager.ErrAlreadySettled),
				errors.Is(err, ledger.ErrDuplicateTransaction):
				// retry cruzou com execução anterior — nada a fazer
				report.Skipped++
				continue
			default:
				p.Log.Warn("settle wager failed",
					zap.String("wager_id", w.ID),
					zap.String("fixture_id", fixtureID),
					zap.Error(err))
				if p.OnError != nil {
					p.OnError("settle_wager")
				}
				report.FailedIDs = append(report.FailedIDs, w.ID)
				continue
			}
		}

		report.Settled++
		if p.OnSettled != nil {
			p.OnSettled(string(s.NewStatus))
		}
		p.afterSettle(ctx, f, &w, s)
	}

	if len(report.FailedIDs) > 0 {
		return report, ErrPartialSettlement
	}
	return report, nil
}

// decide computa o desfecho de UMA aposta contra o resultado canônico.
//
//	fixture VOID ou empate -> PUSHED, payout = stake (REFUND)
//	seleção == resultado   -> WON, payout = round(stake × odds) (PAYOUT)
//	caso contrário         -> LOST, payout = 0, sem lançamento novo
func decide(f *fixture.Fixture, w *wager.Wager) wager.Settlement {
	s := wager.Settlement{
		WagerID:       w.ID,
		ParticipantID: w.ParticipantID,
		RoundNumber:   f.RoundNumber,
		Year:          f.Year,
	}

	outcome := outcomeOf(f)
	switch {
	case outcome == "void":
		s.NewStatus = wager.StatusPushed
		s.PayoutCents = w.StakeCents
		s.PostTx = true
		s.TxReason = ledger.ReasonRefund
	case outcome == fixture.OutcomeDraw:
		s.NewStatus = wager.StatusPushed
		s.PayoutCents = w.StakeCents
		s.PostTx = true
		s.TxReason = ledger.ReasonRefund
	case w.Selection == outcome:
		s.NewStatus = wager.StatusWon
		s.PayoutCents = int64(math.Round(float64(w.StakeCents) * w.Odds))
		s.PostTx = true
		s.TxReason = ledger.ReasonPayout
	default:
		s.NewStatus = wager.StatusLost
		s.PayoutCents = 0
		s.PostTx = false
	}
	return s
}

func outcomeOf(f *fixture.Fixture) string {
	if f.Status == fixture.StatusVoid {
		return "void"
	}
	return f.Outcome()
}

// afterSettle emite broadcast de saldo e evento Kafka. Falha aqui é só
// log — o estado financeiro já está durável.
func (p *Processor) afterSettle(ctx context.Context, f *fixture.Fixture, w *wager.Wager, s wager.Settlement) {
	if p.Notify != nil && p.Balances != nil && s.PostTx {
		if bal, err := p.Balances.CurrentBalance(ctx, w.ParticipantID); err == nil {
			if err := p.Notify.PublishBalanceUpdate(ctx, notify.BalanceUpdate{
				ParticipantID:   w.ParticipantID,
				NewBalanceCents: bal,
				Reason:          "settlement",
			}); err != nil {
				p.Log.Warn("balance broadcast failed", zap.Error(err))
			}
		}
	}

	if p.Publ != nil {
		if err := p.Publ.PublishWagerSettled(ctx, events.WagerSettled{
			WagerID:       w.ID,
			ParticipantID: w.ParticipantID,
			FixtureID:     f.ID,
			Status:        string(s.NewStatus),
			PayoutCents:   s.PayoutCents,
			Ts:            time.Now().UTC(),
		}); err != nil {
			p.Log.Warn("wager_settled publish failed", zap.Error(err))
		}
	}
}
