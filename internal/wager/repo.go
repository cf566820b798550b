package wager

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/ledger"
)

// Postgres implementa o Wager Ledger em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// PlaceParams são os argumentos de colocação de aposta.
type PlaceParams struct {
	ParticipantID string
	FixtureID     string
	Selection     string // "home" | "away"
	StakeCents    int64
}

// Place coloca uma aposta numa transação única: trava a linha do
// participante, deriva o saldo do extrato, valida o fixture e grava
// aposta + lançamento STAKE juntos. Qualquer falha desfaz tudo.
func (p *Postgres) Place(ctx context.Context, params PlaceParams) (*Wager, error) {
	if params.Selection != fixture.OutcomeHome && params.Selection != fixture.OutcomeAway {
		return nil, ErrInvalidSelection
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Lock pessimista no participante: serializa colocações concorrentes
	// do mesmo usuário sem precisar de saldo cacheado.
	var pid string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM participants WHERE id=$1 FOR UPDATE`, params.ParticipantID,
	).Scan(&pid)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrParticipantNotFound
	} else if err != nil {
		return nil, err
	}

	var (
		status             string
		kickoff            time.Time
		homeOdds, awayOdds float64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, kickoff_at, COALESCE(home_odds,0), COALESCE(away_odds,0)
		FROM fixtures WHERE id=$1`, params.FixtureID,
	).Scan(&status, &kickoff, &homeOdds, &awayOdds)
	if err == sql.ErrNoRows {
		return nil, fixture.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	if status != string(fixture.StatusScheduled) || !kickoff.After(time.Now().UTC()) {
		return nil, ErrFixtureClosed
	}

	odds := homeOdds
	if params.Selection == fixture.OutcomeAway {
		odds = awayOdds
	}
	if odds <= 1.0 {
		return nil, ErrOddsUnavailable
	}

	// Saldo derivado do extrato dentro da própria transação.
	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents),0) FROM balance_transactions WHERE participant_id=$1`,
		params.ParticipantID,
	).Scan(&balance); err != nil {
		return nil, err
	}
	if balance < params.StakeCents {
		return nil, ErrInsufficientBalance
	}

	w := &Wager{
		ID:            uuid.NewString(),
		ParticipantID: params.ParticipantID,
		FixtureID:     params.FixtureID,
		Selection:     params.Selection,
		StakeCents:    params.StakeCents,
		Odds:          odds,
		Status:        StatusOpen,
		PlacedAt:      time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wagers (id, participant_id, fixture_id, selection, stake_cents, odds, status, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,'OPEN',$7)`,
		w.ID, w.ParticipantID, w.FixtureID, w.Selection, w.StakeCents, w.Odds, w.PlacedAt,
	); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO balance_transactions (id, participant_id, amount_cents, reason, wager_id)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), w.ParticipantID, -w.StakeCents, ledger.ReasonStake, w.ID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

// ListOpenByFixture devolve as apostas ainda OPEN de um fixture.
// Apostas já liquidadas ficam fora — é isso que torna o retry seguro.
func (p *Postgres) ListOpenByFixture(ctx context.Context, fixtureID string) ([]Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, participant_id, fixture_id, selection, stake_cents, odds, status, payout_cents, placed_at, settled_at
		FROM wagers
		WHERE fixture_id=$1 AND status='OPEN'
		ORDER BY placed_at ASC`,
		fixtureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wager
	for rows.Next() {
		var w Wager
		if err := rows.Scan(&w.ID, &w.ParticipantID, &w.FixtureID, &w.Selection,
			&w.StakeCents, &w.Odds, &w.Status, &w.PayoutCents, &w.PlacedAt, &w.SettledAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Settlement é a unidade atômica de liquidação de UMA aposta:
// status/payout e o lançamento financeiro commitam juntos ou nada commita.
type Settlement struct {
	WagerID       string
	ParticipantID string
	NewStatus     Status
	PayoutCents   int64
	PostTx        bool   // LOST não gera lançamento
	TxReason      string // PAYOUT | REFUND
	RoundNumber   int
	Year          int
}

// SettleOne aplica a liquidação de uma aposta. Idempotente: se a aposta
// já saiu de OPEN o update guarda zero linhas e devolve ErrAlreadySettled;
// se o payout já foi lançado o índice único devolve ErrDuplicateTransaction.
// Ambos são tratados como "nada a fazer" pelo settlement.
func (p *Postgres) SettleOne(ctx context.Context, s Settlement) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE wagers
		SET status=$1, payout_cents=$2, settled_at=NOW()
		WHERE id=$3 AND status='OPEN'`,
		s.NewStatus, s.PayoutCents, s.WagerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadySettled
	}

	if s.PostTx {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO balance_transactions
				(id, participant_id, amount_cents, reason, wager_id, round_number, year)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			uuid.NewString(), s.ParticipantID, s.PayoutCents, s.TxReason,
			s.WagerID, s.RoundNumber, s.Year,
		); err != nil {
			if ledger.IsUniqueViolation(err) {
				return ledger.ErrDuplicateTransaction
			}
			return err
		}
	}

	return tx.Commit()
}

// HistoryItem é uma aposta enriquecida com dados do fixture para leitura.
type HistoryItem struct {
	Wager
	HomeTeam  string
	AwayTeam  string
	KickoffAt time.Time
}

// HistoryByParticipant devolve o histórico de apostas do participante.
func (p *Postgres) HistoryByParticipant(ctx context.Context, participantID string, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT w.id, w.participant_id, w.fixture_id, w.selection, w.stake_cents, w.odds,
		       w.status, w.payout_cents, w.placed_at, w.settled_at,
		       f.home_team, f.away_team, f.kickoff_at
		FROM wagers w
		JOIN fixtures f ON f.id = w.fixture_id
		WHERE w.participant_id=$1
		ORDER BY w.placed_at DESC
		LIMIT $2`,
		participantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryItem
	for rows.Next() {
		var h HistoryItem
		if err := rows.Scan(&h.ID, &h.ParticipantID, &h.FixtureID, &h.Selection,
			&h.StakeCents, &h.Odds, &h.Status, &h.PayoutCents, &h.PlacedAt, &h.SettledAt,
			&h.HomeTeam, &h.AwayTeam, &h.KickoffAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
