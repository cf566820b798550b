package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/gateway"
	"github.com/radieske/settlement-engine/internal/lease"
	"github.com/radieske/settlement-engine/internal/oddscache"
	"github.com/radieske/settlement-engine/internal/settlement"
	"github.com/radieske/settlement-engine/pkg/contracts/events"
)

// ErrAlreadyRunning: já existe um reconcile em andamento pra mesma
// rodada/ano. O gatilho extra é um no-op que reporta, não enfileira.
var ErrAlreadyRunning = errors.New("reconcile already running for round")

// Posse do lease de rodada. Maior que um run normal; expirável pra
// sobreviver a worker morto.
const reconcileLeaseTTL = 5 * time.Minute

// Gateway busca o snapshot da fonte externa.
type Gateway interface {
	Fetch(ctx context.Context, round, year int) (*gateway.Snapshot, error)
}

// FixtureStore é o que o engine precisa do Fixture Store.
type FixtureStore interface {
	GetBySourceID(ctx context.Context, sourceID string) (*fixture.Fixture, error)
	ApplyTransition(ctx context.Context, t fixture.Transition) error
	UpdateOdds(ctx context.Context, id string, homeOdds, awayOdds float64, sourceHash string) error
	TouchCursor(ctx context.Context, id, sourceHash string) error
	ListFinalUnsettled(ctx context.Context, round, year int) ([]fixture.Fixture, error)
}

// Settler liquida um fixture finalizado.
type Settler interface {
	Settle(ctx context.Context, fixtureID string) (*settlement.Report, error)
}

// Publisher emite eventos de ciclo de vida (Kafka).
type Publisher interface {
	PublishFixtureFinal(ctx context.Context, e events.FixtureFinal) error
	PublishResultCorrection(ctx context.Context, e events.ResultCorrection) error
}

// OddsCache publica odds frescas pro bet-service validar colocações.
type OddsCache interface {
	SetCurrent(ctx context.Context, e oddscache.Entry) error
}

// Engine é o orquestrador da reconciliação: um tick = um snapshot da
// fonte, diffs por fixture, transições de estado e liquidação dos que
// viraram FINAL. Callbacks de métricas por etapa, como nos workers.
type Engine struct {
	Log      *zap.Logger
	Gw       Gateway
	Fixtures FixtureStore
	Settler  Settler
	Lease    lease.Lease
	Publ     Publisher // opcional
	Odds     OddsCache // opcional

	OnAdvanced   func()             // métricas (counter++)
	OnNoOp       func()             // métricas
	OnRejected   func()             // métricas
	OnCorrection func()             // métricas
	OnError      func(stage string) // métricas por fase
}

// SettlementOutcome resume o settle de um fixture dentro do run.
type SettlementOutcome struct {
	FixtureID string
	Settled   int
	FailedIDs []string
	Err       string
}

// Report é a saída de um run — observabilidade, não correção.
type Report struct {
	RoundNumber   int
	Year          int
	StartedAt     time.Time
	Advanced      int // transições aplicadas
	NoOps         int // hash igual ao cursor, nada a fazer
	OddsUpdated   int // só odds/cursor mudaram
	Rejected      int // transição ilegal, pulada com warning
	UnknownSource int // fixture da fonte sem registro local
	Corrections   int // placar mudou depois de FINAL
	Settlements   []SettlementOutcome
	Cancelled     bool
}

// Reconcile roda um ciclo completo pra rodada. Exclusão mútua por
// rodada via lease acquire-or-skip; falha do gateway aborta o run
// inteiro sem tocar nos stores.
func (e *Engine) Reconcile(ctx context.Context, round, year int) (*Report, error) {
	key := fmt.Sprintf("lease:reconcile:%d:%d", year, round)
	token, err := e.Lease.Acquire(ctx, key, reconcileLeaseTTL)
	if err != nil {
		if errors.Is(err, lease.ErrNotAcquired) {
			return nil, ErrAlreadyRunning
		}
		return nil, err
	}
	defer e.Lease.Release(ctx, key, token)

	report := &Report{RoundNumber: round, Year: year, StartedAt: time.Now().UTC()}

	snap, err := e.Gw.Fetch(ctx, round, year)
	if err != nil {
		// sem aplicação parcial: o próximo tick refaz do zero
		if e.OnError != nil {
			e.OnError("fetch")
		}
		return nil, fmt.Errorf("fetch round %d/%d: %w", round, year, err)
	}

	settled := make(map[string]bool)
	for i := range snap.Records {
		// checkpoint cooperativo entre fixtures — nunca no meio de um
		if ctx.Err() != nil {
			report.Cancelled = true
			return report, ctx.Err()
		}
		e.applyRecord(ctx, &snap.Records[i], report, settled)
	}

	// Fixtures presos em FINAL/VOID com aposta OPEN (run anterior caiu
	// no meio): retry sem novo fetch.
	e.retryStuck(ctx, round, year, report, settled)

	return report, nil
}

// applyRecord processa UM registro do snapshot: skip idempotente,
// correção pós-FINAL, transição guardada ou atualização de odds.
func (e *Engine) applyRecord(ctx context.Context, rec *gateway.Record, report *Report, settled map[string]bool) {
	f, err := e.Fixtures.GetBySourceID(ctx, rec.SourceID)
	if err != nil {
		if errors.Is(err, fixture.ErrNotFound) {
			// criação de fixture é papel da população de grade
			e.Log.Warn("snapshot traz fixture desconhecido",
				zap.String("source_id", rec.SourceID))
			report.UnknownSource++
			return
		}
		if e.OnError != nil {
			e.OnError("load_fixture")
		}
		report.UnknownSource++
		return
	}

	hash := rec.Hash()
	if hash == f.SourceHash {
		// mesmo dado já aplicado — re-run de tick é no-op por construção
		report.NoOps++
		if e.OnNoOp != nil {
			e.OnNoOp()
		}
		return
	}

	if f.Status == fixture.StatusFinal {
		e.handlePostFinal(ctx, rec, f, hash, report)
		return
	}

	target, ok := targetStatus(rec)
	if !ok || target == f.Status {
		// nada de estado: só odds/cursor andaram
		if err := e.Fixtures.UpdateOdds(ctx, f.ID, rec.HomeOdds, rec.AwayOdds, hash); err != nil {
			e.Log.Warn("update odds failed", zap.String("fixture_id", f.ID), zap.Error(err))
			if e.OnError != nil {
				e.OnError("update_odds")
			}
			return
		}
		e.cacheOdds(ctx, f.ID, rec)
		report.OddsUpdated++
		return
	}

	if !fixture.CanTransition(f.Status, target) {
		// inconsistência da fonte: pula com warning, não derruba o run
		e.Log.Warn("transição ilegal rejeitada",
			zap.String("fixture_id", f.ID),
			zap.String("from", string(f.Status)),
			zap.String("to", string(target)))
		report.Rejected++
		if e.OnRejected != nil {
			e.OnRejected()
		}
		return
	}

	t := fixture.Transition{
		FixtureID:  f.ID,
		From:       f.Status,
		To:         target,
		HomeOdds:   rec.HomeOdds,
		AwayOdds:   rec.AwayOdds,
		SourceHash: hash,
	}
	if target == fixture.StatusFinal {
		t.HomeScore = rec.HomeScore
		t.AwayScore = rec.AwayScore
	}

	if err := e.Fixtures.ApplyTransition(ctx, t); err != nil {
		if errors.Is(err, fixture.ErrStaleTransition) {
			// outro worker chegou primeiro — o cursor dele já vale
			report.NoOps++
			return
		}
		e.Log.Warn("apply transition failed", zap.String("fixture_id", f.ID), zap.Error(err))
		if e.OnError != nil {
			e.OnError("apply_transition")
		}
		return
	}

	report.Advanced++
	if e.OnAdvanced != nil {
		e.OnAdvanced()
	}
	e.cacheOdds(ctx, f.ID, rec)

	if target == fixture.StatusFinal {
		e.publishFinal(ctx, rec, f)
	}
	if target == fixture.StatusFinal || target == fixture.StatusVoid {
		e.settleOne(ctx, f.ID, report)
		settled[f.ID] = true
	}
}

// handlePostFinal trata snapshot de fixture já FINAL: placar diferente
// vira evento de correção (nunca re-liquidação); igual vira no-op com
// cursor avançado.
func (e *Engine) handlePostFinal(ctx context.Context, rec *gateway.Record, f *fixture.Fixture, hash string, report *Report) {
	if rec.HasFinalScore() && scoreDiffers(f, rec) {
		report.Corrections++
		if e.OnCorrection != nil {
			e.OnCorrection()
		}
		e.Log.Warn("placar corrigido depois de FINAL — intervenção manual",
			zap.String("fixture_id", f.ID),
			zap.Intp("old_home", f.HomeScore), zap.Intp("old_away", f.AwayScore),
			zap.Intp("new_home", rec.HomeScore), zap.Intp("new_away", rec.AwayScore))
		if e.Publ != nil {
			ev := events.ResultCorrection{
				FixtureID:  f.ID,
				SourceID:   f.SourceID,
				SourceHash: hash,
				Ts:         time.Now().UTC(),
			}
			if f.HomeScore != nil {
				ev.OldHomeScore = *f.HomeScore
			}
			if f.AwayScore != nil {
				ev.OldAwayScore = *f.AwayScore
			}
			ev.NewHomeScore = *rec.HomeScore
			ev.NewAwayScore = *rec.AwayScore
			if err := e.Publ.PublishResultCorrection(ctx, ev); err != nil {
				e.Log.Warn("result_correction publish failed", zap.Error(err))
			}
		}
		return
	}

	// hash mudou por ruído (ex.: odds pós-jogo) — avança o cursor
	if err := e.Fixtures.TouchCursor(ctx, f.ID, hash); err != nil {
		e.Log.Warn("touch cursor failed", zap.String("fixture_id", f.ID), zap.Error(err))
	}
	report.NoOps++
	if e.OnNoOp != nil {
		e.OnNoOp()
	}
}

// retryStuck liquida fixtures FINAL/VOID que ainda têm aposta OPEN.
func (e *Engine) retryStuck(ctx context.Context, round, year int, report *Report, settled map[string]bool) {
	stuck, err := e.Fixtures.ListFinalUnsettled(ctx, round, year)
	if err != nil {
		e.Log.Warn("list final unsettled failed", zap.Error(err))
		if e.OnError != nil {
			e.OnError("list_stuck")
		}
		return
	}
	for i := range stuck {
		if ctx.Err() != nil {
			report.Cancelled = true
			return
		}
		if settled[stuck[i].ID] {
			continue
		}
		e.settleOne(ctx, stuck[i].ID, report)
	}
}

// settleOne chama o settlement e registra o desfecho no report.
// Falha parcial não aborta o run — o fixture fica pro próximo tick.
func (e *Engine) settleOne(ctx context.Context, fixtureID string, report *Report) {
	out := SettlementOutcome{FixtureID: fixtureID}
	rep, err := e.Settler.Settle(ctx, fixtureID)
	if rep != nil {
		out.Settled = rep.Settled
		out.FailedIDs = rep.FailedIDs
	}
	if err != nil {
		out.Err = err.Error()
		if !errors.Is(err, settlement.ErrAlreadyRunning) {
			e.Log.Warn("settlement failed",
				zap.String("fixture_id", fixtureID), zap.Error(err))
			if e.OnError != nil {
				e.OnError("settle")
			}
		}
	}
	report.Settlements = append(report.Settlements, out)
}

func (e *Engine) publishFinal(ctx context.Context, rec *gateway.Record, f *fixture.Fixture) {
	if e.Publ == nil {
		return
	}
	outcome := fixture.OutcomeDraw
	switch {
	case *rec.HomeScore > *rec.AwayScore:
		outcome = fixture.OutcomeHome
	case *rec.AwayScore > *rec.HomeScore:
		outcome = fixture.OutcomeAway
	}
	err := e.Publ.PublishFixtureFinal(ctx, events.FixtureFinal{
		FixtureID:   f.ID,
		SourceID:    f.SourceID,
		RoundNumber: f.RoundNumber,
		Year:        f.Year,
		HomeTeam:    f.HomeTeam,
		AwayTeam:    f.AwayTeam,
		HomeScore:   *rec.HomeScore,
		AwayScore:   *rec.AwayScore,
		Outcome:     outcome,
		Ts:          time.Now().UTC(),
	})
	if err != nil {
		e.Log.Warn("fixture_final publish failed", zap.Error(err))
	}
}

func (e *Engine) cacheOdds(ctx context.Context, fixtureID string, rec *gateway.Record) {
	if e.Odds == nil || (rec.HomeOdds <= 1.0 && rec.AwayOdds <= 1.0) {
		return
	}
	if err := e.Odds.SetCurrent(ctx, oddscache.Entry{
		FixtureID: fixtureID,
		HomeOdds:  rec.HomeOdds,
		AwayOdds:  rec.AwayOdds,
	}); err != nil {
		e.Log.Warn("odds cache set failed", zap.Error(err))
	}
}

// targetStatus mapeia hint + presença de placar pro status alvo.
func targetStatus(rec *gateway.Record) (fixture.Status, bool) {
	switch rec.StatusHint {
	case gateway.HintFullTime:
		if !rec.HasFinalScore() {
			return "", false
		}
		return fixture.StatusFinal, true
	case gateway.HintLive:
		return fixture.StatusInProgress, true
	case gateway.HintPostponed:
		return fixture.StatusPostponed, true
	case gateway.HintCancelled:
		return fixture.StatusVoid, true
	case gateway.HintUpcoming:
		return fixture.StatusScheduled, true
	default:
		return "", false
	}
}

func scoreDiffers(f *fixture.Fixture, rec *gateway.Record) bool {
	if f.HomeScore == nil || f.AwayScore == nil {
		return true
	}
	return *f.HomeScore != *rec.HomeScore || *f.AwayScore != *rec.AwayScore
}
