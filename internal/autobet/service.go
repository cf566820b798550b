package autobet

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/prediction"
	"github.com/radieske/settlement-engine/internal/wager"
)

// Limites do bot. Kelly fracionado com teto: o bot nunca arrisca mais
// que MaxStakeFraction do saldo numa aposta só.
const (
	kellyFraction    = 0.25
	maxStakeFraction = 0.10
	minStakeCents    = 1_00
	minConfidence    = 0.55
)

// Predictor fornece o palpite do modelo externo.
type Predictor interface {
	Predict(ctx context.Context, homeTeam, awayTeam string) (*prediction.Prediction, error)
}

// FixtureStore lista os confrontos abertos da rodada.
type FixtureStore interface {
	ListByRound(ctx context.Context, round, year int) ([]fixture.Fixture, error)
}

// WagerStore coloca apostas pelo mesmo caminho transacional dos humanos.
type WagerStore interface {
	Place(ctx context.Context, params wager.PlaceParams) (*wager.Wager, error)
}

// BalanceReader deriva o saldo do bot pra dimensionar o stake.
type BalanceReader interface {
	CurrentBalance(ctx context.Context, participantID string) (int64, error)
}

// BotStore lista os participantes marcados como bot.
type BotStore interface {
	ListBots(ctx context.Context) ([]string, error)
}

// Service coloca apostas automáticas pros participantes-bot seguindo o
// palpite do serviço de predição. Sem palpite (ou confiança baixa), o
// bot pula o confronto.
type Service struct {
	Log       *zap.Logger
	Predictor Predictor
	Fixtures  FixtureStore
	Wagers    WagerStore
	Balances  BalanceReader
	Bots      BotStore
}

// RunReport resume uma varredura do bot.
type RunReport struct {
	RoundNumber int
	Year        int
	Placed      int
	Skipped     int // sem palpite, odds fechadas, aposta repetida
	Failed      int
}

// Run aposta por todos os bots nos fixtures SCHEDULED da rodada.
func (s *Service) Run(ctx context.Context, round, year int) (*RunReport, error) {
	bots, err := s.Bots.ListBots(ctx)
	if err != nil {
		return nil, err
	}
	fixtures, err := s.Fixtures.ListByRound(ctx, round, year)
	if err != nil {
		return nil, err
	}

	report := &RunReport{RoundNumber: round, Year: year}
	for i := range fixtures {
		f := &fixtures[i]
		if f.Status != fixture.StatusScheduled {
			continue
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		pred, err := s.Predictor.Predict(ctx, f.HomeTeam, f.AwayTeam)
		if err != nil || pred.Confidence < minConfidence {
			report.Skipped++
			continue
		}
		odds, ok := f.OddsFor(pred.Winner)
		if !ok {
			report.Skipped++
			continue
		}

		for _, bot := range bots {
			s.placeFor(ctx, bot, f, pred, odds, report)
		}
	}
	return report, nil
}

func (s *Service) placeFor(ctx context.Context, botID string, f *fixture.Fixture, pred *prediction.Prediction, odds float64, report *RunReport) {
	balance, err := s.Balances.CurrentBalance(ctx, botID)
	if err != nil || balance < minStakeCents {
		report.Skipped++
		return
	}

	stake := stakeFor(balance, pred.Confidence, odds)
	if stake < minStakeCents {
		report.Skipped++
		return
	}

	_, err = s.Wagers.Place(ctx, wager.PlaceParams{
		ParticipantID: botID,
		FixtureID:     f.ID,
		Selection:     pred.Winner,
		StakeCents:    stake,
	})
	switch {
	case err == nil:
		report.Placed++
		s.Log.Info("aposta automática colocada",
			zap.String("bot", botID),
			zap.String("fixture_id", f.ID),
			zap.String("selection", pred.Winner),
			zap.Int64("stake_cents", stake))
	case errors.Is(err, wager.ErrFixtureClosed),
		errors.Is(err, wager.ErrOddsUnavailable),
		errors.Is(err, wager.ErrInsufficientBalance):
		report.Skipped++
	default:
		s.Log.Warn("aposta automática falhou",
			zap.String("bot", botID), zap.Error(err))
		report.Failed++
	}
}

// stakeFor dimensiona o stake por critério de Kelly fracionado:
//
//	f* = (p·b − q) / b, com b = odds − 1
//
// negativo vira zero (sem edge, sem aposta) e o resultado é limitado a
// maxStakeFraction do saldo.
func stakeFor(balanceCents int64, confidence, odds float64) int64 {
	b := odds - 1.0
	if b <= 0 {
		return 0
	}
	edge := (confidence*b - (1.0 - confidence)) / b
	if edge <= 0 {
		return 0
	}
	frac := edge * kellyFraction
	if frac > maxStakeFraction {
		frac = maxStakeFraction
	}
	return int64(math.Floor(float64(balanceCents) * frac))
}
