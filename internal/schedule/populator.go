package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/gateway"
)

// Gateway é a fatia da fonte externa que a população usa.
type Gateway interface {
	Fetch(ctx context.Context, round, year int) (*gateway.Snapshot, error)
}

// FixtureStore é a fatia de escrita da grade.
type FixtureStore interface {
	UpsertSchedule(ctx context.Context, f *fixture.Fixture) (string, error)
}

// Populator carrega a grade de rodadas da fonte externa pro banco.
// Idempotente: rodar duas vezes só atualiza kickoff/venue/odds.
type Populator struct {
	Log      *zap.Logger
	Gw       Gateway
	Fixtures FixtureStore
	Rounds   *RoundStore
}

// PopulateReport resume uma carga de grade.
type PopulateReport struct {
	Year     int
	Rounds   int
	Fixtures int
	Skipped  int // registros sem dados mínimos
}

// PopulateRange carrega as rodadas [from, to] de um ano. Falha de uma
// rodada aborta a carga — grade parcial silenciosa é pior que erro.
func (p *Populator) PopulateRange(ctx context.Context, year, from, to int) (*PopulateReport, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("invalid round range %d..%d", from, to)
	}

	report := &PopulateReport{Year: year}
	for round := from; round <= to; round++ {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		snap, err := p.Gw.Fetch(ctx, round, year)
		if err != nil {
			return report, fmt.Errorf("populate round %d/%d: %w", round, year, err)
		}

		first, last := kickoffWindow(snap)
		if err := p.Rounds.Upsert(ctx, round, year, first, last); err != nil {
			return report, fmt.Errorf("upsert round %d/%d: %w", round, year, err)
		}
		report.Rounds++

		for i := range snap.Records {
			rec := &snap.Records[i]
			if rec.SourceID == "" || rec.HomeTeam == "" || rec.AwayTeam == "" {
				report.Skipped++
				continue
			}
			_, err := p.Fixtures.UpsertSchedule(ctx, &fixture.Fixture{
				SourceID:    rec.SourceID,
				RoundNumber: round,
				Year:        year,
				HomeTeam:    rec.HomeTeam,
				AwayTeam:    rec.AwayTeam,
				Venue:       rec.Venue,
				KickoffAt:   rec.KickoffAt,
				HomeOdds:    rec.HomeOdds,
				AwayOdds:    rec.AwayOdds,
			})
			if err != nil {
				return report, fmt.Errorf("upsert fixture %s: %w", rec.SourceID, err)
			}
			report.Fixtures++
		}

		p.Log.Info("rodada carregada",
			zap.Int("round", round), zap.Int("year", year),
			zap.Int("fixtures", len(snap.Records)))
	}
	return report, nil
}

// kickoffWindow acha o primeiro e o último kickoff do snapshot.
func kickoffWindow(snap *gateway.Snapshot) (first, last time.Time) {
	for i := range snap.Records {
		k := snap.Records[i].KickoffAt
		if k.IsZero() {
			continue
		}
		if first.IsZero() || k.Before(first) {
			first = k
		}
		if last.IsZero() || k.After(last) {
			last = k
		}
	}
	return first, last
}

// RoundStore persiste as rodadas da temporada.
type RoundStore struct{ db *sql.DB }

func NewRoundStore(db *sql.DB) *RoundStore { return &RoundStore{db: db} }

// Upsert grava a rodada; conflito em (round_number, year) só atualiza a
// janela de kickoffs.
func (s *RoundStore) Upsert(ctx context.Context, round, year int, firstKickoff, lastKickoff time.Time) error {
	// a janela é NOT NULL no schema; snapshot sem kickoff cai em "agora"
	now := time.Now().UTC()
	if firstKickoff.IsZero() {
		firstKickoff = now
	}
	if lastKickoff.IsZero() {
		lastKickoff = firstKickoff
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (round_number, year, start_date, end_date)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (round_number, year) DO UPDATE SET
			start_date = EXCLUDED.start_date,
			end_date   = EXCLUDED.end_date`,
		round, year, firstKickoff.UTC(), lastKickoff.UTC(),
	)
	return err
}

// Current devolve a rodada cuja janela contém o instante dado, ou a
// próxima a começar. sql.ErrNoRows vira (0, false).
func (s *RoundStore) Current(ctx context.Context, year int, now time.Time) (int, bool, error) {
	var round int
	err := s.db.QueryRowContext(ctx, `
		SELECT round_number FROM rounds
		WHERE year = $1 AND end_date >= $2
		ORDER BY round_number ASC
		LIMIT 1`,
		year, now.UTC(),
	).Scan(&round)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return round, true, nil
}

// MarkCompleted fecha a rodada depois que todos os fixtures liquidaram.
func (s *RoundStore) MarkCompleted(ctx context.Context, round, year int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET status='COMPLETED' WHERE round_number=$1 AND year=$2`,
		round, year,
	)
	return err
}
