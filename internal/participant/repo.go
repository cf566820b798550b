package participant

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("participant not found")

// Participant é quem aposta — humano ou bot.
type Participant struct {
	ID        string
	Username  string
	IsBot     bool
	CreatedAt time.Time
}

// Postgres implementa o cadastro de participantes em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Upsert cadastra o participante; username repetido é no-op.
func (p *Postgres) Upsert(ctx context.Context, pt *Participant) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO participants (id, username, is_bot)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO NOTHING`,
		pt.ID, pt.Username, pt.IsBot,
	)
	return err
}

func (p *Postgres) GetByID(ctx context.Context, id string) (*Participant, error) {
	var pt Participant
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, is_bot, created_at FROM participants WHERE id=$1`, id,
	).Scan(&pt.ID, &pt.Username, &pt.IsBot, &pt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

// ListBots devolve os ids dos participantes automáticos.
func (p *Postgres) ListBots(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id FROM participants WHERE is_bot ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
