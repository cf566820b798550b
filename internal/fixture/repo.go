package fixture

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Postgres implementa o Fixture Store em banco.
// Toda mutação roda numa transação curta por fixture — nunca por rodada.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const selectCols = `
	id, source_id, round_number, year, home_team, away_team,
	COALESCE(venue,''), kickoff_at, COALESCE(home_odds,0), COALESCE(away_odds,0),
	status, home_score, away_score, source_hash, last_synced_at, created_at, updated_at`

func scanFixture(row interface{ Scan(...any) error }) (*Fixture, error) {
	var f Fixture
	err := row.Scan(
		&f.ID, &f.SourceID, &f.RoundNumber, &f.Year, &f.HomeTeam, &f.AwayTeam,
		&f.Venue, &f.KickoffAt, &f.HomeOdds, &f.AwayOdds,
		&f.Status, &f.HomeScore, &f.AwayScore, &f.SourceHash, &f.LastSyncedAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByID busca um fixture pelo id interno.
func (p *Postgres) GetByID(ctx context.Context, id string) (*Fixture, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM fixtures WHERE id=$1`, id)
	return scanFixture(row)
}

// GetBySourceID busca um fixture pelo id da fonte externa.
func (p *Postgres) GetBySourceID(ctx context.Context, sourceID string) (*Fixture, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+selectCols+` FROM fixtures WHERE source_id=$1`, sourceID)
	return scanFixture(row)
}

// Transition descreve uma mudança de status vinda da reconciliação.
// From é usado como guarda otimista: se outro worker já avançou o fixture,
// o update afeta zero linhas e o chamador recebe ErrStaleTransition.
type Transition struct {
	FixtureID  string
	From       Status
	To         Status
	HomeScore  *int // só para To == FINAL
	AwayScore  *int
	HomeOdds   float64
	AwayOdds   float64
	SourceHash string
}

// ApplyTransition aplica a transição e avança o SyncCursor na mesma
// transação. A legalidade da transição é validada antes pelo engine;
// aqui só vale a guarda de concorrência.
func (p *Postgres) ApplyTransition(ctx context.Context, t Transition) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE fixtures
		SET status=$1, home_score=$2, away_score=$3,
		    home_odds=NULLIF($4,0.0), away_odds=NULLIF($5,0.0),
		    source_hash=$6, last_synced_at=NOW(), updated_at=NOW()
		WHERE id=$7 AND status=$8`,
		t.To, t.HomeScore, t.AwayScore, t.HomeOdds, t.AwayOdds,
		t.SourceHash, t.FixtureID, t.From,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleTransition
	}
	return nil
}

// UpdateOdds grava odds novas e o cursor quando o snapshot mudou sem
// mudar o status (caso típico: movimentação de odds pré-jogo).
func (p *Postgres) UpdateOdds(ctx context.Context, id string, homeOdds, awayOdds float64, sourceHash string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE fixtures
		SET home_odds=NULLIF($1,0.0), away_odds=NULLIF($2,0.0),
		    source_hash=$3, last_synced_at=NOW(), updated_at=NOW()
		WHERE id=$4`,
		homeOdds, awayOdds, sourceHash, id,
	)
	return err
}

// ListFinalUnsettled devolve fixtures FINAL ou VOID da rodada que ainda
// têm aposta OPEN — é o sinal de liquidação pendente de retry.
func (p *Postgres) ListFinalUnsettled(ctx context.Context, round, year int) ([]Fixture, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT `+selectCols+`
		FROM fixtures f
		WHERE f.round_number=$1 AND f.year=$2
		  AND f.status IN ('FINAL','VOID')
		  AND EXISTS (SELECT 1 FROM wagers w WHERE w.fixture_id=f.id AND w.status='OPEN')`,
		round, year,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListByRound devolve os fixtures de uma rodada, ordenados por kickoff.
func (p *Postgres) ListByRound(ctx context.Context, round, year int) ([]Fixture, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+selectCols+` FROM fixtures
		WHERE round_number=$1 AND year=$2
		ORDER BY kickoff_at ASC`,
		round, year,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]Fixture, error) {
	var out []Fixture
	for rows.Next() {
		f, err := scanFixture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// UpsertSchedule insere o fixture da grade ou atualiza kickoff/venue/odds
// de um já existente. Nunca toca status nem placar — isso é trabalho da
// reconciliação.
func (p *Postgres) UpsertSchedule(ctx context.Context, f *Fixture) (string, error) {
	id := uuid.NewString()
	var venue *string
	if f.Venue != "" {
		venue = &f.Venue
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO fixtures
			(id, source_id, round_number, year, home_team, away_team, venue,
			 kickoff_at, home_odds, away_odds, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,0.0),NULLIF($10,0.0),'SCHEDULED')
		ON CONFLICT (source_id) DO UPDATE SET
			kickoff_at = EXCLUDED.kickoff_at,
			venue      = COALESCE(EXCLUDED.venue, fixtures.venue),
			home_odds  = COALESCE(EXCLUDED.home_odds, fixtures.home_odds),
			away_odds  = COALESCE(EXCLUDED.away_odds, fixtures.away_odds),
			updated_at = NOW()
		RETURNING id`,
		id, f.SourceID, f.RoundNumber, f.Year, f.HomeTeam, f.AwayTeam, venue,
		f.KickoffAt.UTC(), f.HomeOdds, f.AwayOdds,
	)
	var got string
	if err := row.Scan(&got); err != nil {
		return "", err
	}
	return got, nil
}

// TouchCursor marca um snapshot como aplicado sem nenhuma outra mutação
// (usado quando o hash muda mas nada relevante mudou).
func (p *Postgres) TouchCursor(ctx context.Context, id, sourceHash string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE fixtures SET source_hash=$1, last_synced_at=NOW() WHERE id=$2`,
		sourceHash, id,
	)
	return err
}
