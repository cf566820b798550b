package ledger

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Postgres implementa o Balance Ledger em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Post insere um lançamento no extrato. Para PAYOUT/REFUND a unicidade
// por aposta é garantida pelo banco, não por check-then-act: violação
// vira ErrDuplicateTransaction.
func (p *Postgres) Post(ctx context.Context, t *Transaction) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO balance_transactions
			(id, participant_id, amount_cents, reason, wager_id, round_number, year)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, t.ParticipantID, t.AmountCents, t.Reason, t.WagerID, t.RoundNumber, t.Year,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return "", ErrDuplicateTransaction
		}
		return "", err
	}
	return id, nil
}

// CurrentBalance deriva o saldo somando o extrato — a fonte de verdade é
// o log, nunca um saldo cacheado.
func (p *Postgres) CurrentBalance(ctx context.Context, participantID string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents),0) FROM balance_transactions WHERE participant_id=$1`,
		participantID,
	).Scan(&balance)
	return balance, err
}

// ListByParticipant devolve o extrato em ordem cronológica inversa.
func (p *Postgres) ListByParticipant(ctx context.Context, participantID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, participant_id, amount_cents, reason, wager_id, round_number, year, created_at
		FROM balance_transactions
		WHERE participant_id=$1
		ORDER BY created_at DESC
		LIMIT $2`,
		participantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.ParticipantID, &t.AmountCents, &t.Reason,
			&t.WagerID, &t.RoundNumber, &t.Year, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListActiveParticipants devolve os ids de todos os participantes
// (usado pelo bônus de rodada).
func (p *Postgres) ListActiveParticipants(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM participants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
