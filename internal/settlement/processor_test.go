package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/ledger"
	"github.com/radieske/settlement-engine/internal/lease"
	"github.com/radieske/settlement-engine/internal/notify"
	"github.com/radieske/settlement-engine/internal/wager"
	"github.com/radieske/settlement-engine/pkg/contracts/events"
)

type fakeFixtures struct {
	byID map[string]*fixture.Fixture
}

func (f *fakeFixtures) GetByID(_ context.Context, id string) (*fixture.Fixture, error) {
	fx, ok := f.byID[id]
	if !ok {
		return nil, fixture.ErrNotFound
	}
	return fx, nil
}

// fakeWagers emula o comportamento idempotente do banco: SettleOne só
// aplica se a aposta ainda está OPEN, e falhas injetadas valem uma vez.
type fakeWagers struct {
	wagers   map[string]*wager.Wager
	failOnce map[string]error
	settled  []wager.Settlement
}

func (f *fakeWagers) ListOpenByFixture(_ context.Context, fixtureID string) ([]wager.Wager, error) {
	var out []wager.Wager
	for _, w := range f.wagers {
		if w.FixtureID == fixtureID && w.Status == wager.StatusOpen {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeWagers) SettleOne(_ context.Context, s wager.Settlement) error {
	if err, ok := f.failOnce[s.WagerID]; ok {
		delete(f.failOnce, s.WagerID)
		return err
	}
	w, ok := f.wagers[s.WagerID]
	if !ok {
		return wager.ErrNotFound
	}
	if w.Status != wager.StatusOpen {
		return wager.ErrAlreadySettled
	}
	w.Status = s.NewStatus
	w.PayoutCents = &s.PayoutCents
	f.settled = append(f.settled, s)
	return nil
}

type fakeBalances struct{ balance int64 }

func (f *fakeBalances) CurrentBalance(context.Context, string) (int64, error) {
	return f.balance, nil
}

type fakeBroadcaster struct{ updates []notify.BalanceUpdate }

func (f *fakeBroadcaster) PublishBalanceUpdate(_ context.Context, u notify.BalanceUpdate) error {
	f.updates = append(f.updates, u)
	return nil
}

type fakePublisher struct{ settled []events.WagerSettled }

func (f *fakePublisher) PublishWagerSettled(_ context.Context, e events.WagerSettled) error {
	f.settled = append(f.settled, e)
	return nil
}

func finalFixture(home, away int) *fixture.Fixture {
	return &fixture.Fixture{
		ID:          "fx1",
		RoundNumber: 5,
		Year:        2026,
		Status:      fixture.StatusFinal,
		HomeScore:   &home,
		AwayScore:   &away,
	}
}

func openWager(id, selection string, stake int64, odds float64) *wager.Wager {
	return &wager.Wager{
		ID:            id,
		ParticipantID: "p-" + id,
		FixtureID:     "fx1",
		Selection:     selection,
		StakeCents:    stake,
		Odds:          odds,
		Status:        wager.StatusOpen,
		PlacedAt:      time.Now(),
	}
}

func newProcessor(fx *fixture.Fixture, ws ...*wager.Wager) (*Processor, *fakeWagers, *fakePublisher, *fakeBroadcaster) {
	wagers := &fakeWagers{wagers: map[string]*wager.Wager{}, failOnce: map[string]error{}}
	for _, w := range ws {
		wagers.wagers[w.ID] = w
	}
	publ := &fakePublisher{}
	bc := &fakeBroadcaster{}
	p := &Processor{
		Log:      zap.NewNop(),
		Fixtures: &fakeFixtures{byID: map[string]*fixture.Fixture{fx.ID: fx}},
		Wagers:   wagers,
		Balances: &fakeBalances{balance: 5000},
		Lease:    lease.NewMemory(),
		Notify:   bc,
		Publ:     publ,
	}
	return p, wagers, publ, bc
}

func TestSettleHomeWin(t *testing.T) {
	fx := finalFixture(18, 12)
	p, wagers, publ, bc := newProcessor(fx,
		openWager("w1", "home", 10_00, 1.8),
		openWager("w2", "away", 5_00, 2.1),
	)

	report, err := p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Equal(t, "home", report.Outcome)
	assert.Equal(t, 2, report.Settled)
	assert.Empty(t, report.FailedIDs)

	// vencedora: payout = round(stake × odds), inclui o stake de volta
	assert.Equal(t, wager.StatusWon, wagers.wagers["w1"].Status)
	assert.Equal(t, int64(18_00), *wagers.wagers["w1"].PayoutCents)

	// perdedora: sem lançamento financeiro novo
	assert.Equal(t, wager.StatusLost, wagers.wagers["w2"].Status)
	assert.Equal(t, int64(0), *wagers.wagers["w2"].PayoutCents)

	var txCount int
	for _, s := range wagers.settled {
		if s.PostTx {
			txCount++
			assert.Equal(t, ledger.ReasonPayout, s.TxReason)
		}
	}
	assert.Equal(t, 1, txCount)

	// eventos emitidos pra toda aposta liquidada, broadcast só pra quem
	// teve lançamento
	assert.Len(t, publ.settled, 2)
	assert.Len(t, bc.updates, 1)
	assert.Equal(t, "p-w1", bc.updates[0].ParticipantID)
}

func TestSettlePayoutRounding(t *testing.T) {
	fx := finalFixture(20, 10)
	p, wagers, _, _ := newProcessor(fx, openWager("w1", "home", 333, 1.515))

	_, err := p.Settle(context.Background(), "fx1")
	require.NoError(t, err)

	// 333 × 1.515 = 504.495 -> 504 (round half away, uma vez só)
	assert.Equal(t, int64(504), *wagers.wagers["w1"].PayoutCents)
}

func TestSettleDrawPushes(t *testing.T) {
	fx := finalFixture(14, 14)
	p, wagers, _, _ := newProcessor(fx,
		openWager("w1", "home", 10_00, 1.8),
		openWager("w2", "away", 7_50, 2.1),
	)

	report, err := p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Equal(t, "draw", report.Outcome)

	// empate devolve o stake de todo mundo, independente da seleção
	for id, stake := range map[string]int64{"w1": 10_00, "w2": 7_50} {
		assert.Equal(t, wager.StatusPushed, wagers.wagers[id].Status)
		assert.Equal(t, stake, *wagers.wagers[id].PayoutCents)
	}
	for _, s := range wagers.settled {
		assert.Equal(t, ledger.ReasonRefund, s.TxReason)
	}
}

func TestSettleVoidRefunds(t *testing.T) {
	fx := &fixture.Fixture{ID: "fx1", RoundNumber: 5, Year: 2026, Status: fixture.StatusVoid}
	p, wagers, _, _ := newProcessor(fx, openWager("w1", "home", 10_00, 1.8))

	report, err := p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Equal(t, "void", report.Outcome)
	assert.Equal(t, wager.StatusPushed, wagers.wagers["w1"].Status)
	assert.Equal(t, int64(10_00), *wagers.wagers["w1"].PayoutCents)
}

func TestSettleNotSettleable(t *testing.T) {
	fx := &fixture.Fixture{ID: "fx1", Status: fixture.StatusInProgress}
	p, _, _, _ := newProcessor(fx)

	_, err := p.Settle(context.Background(), "fx1")
	assert.ErrorIs(t, err, ErrNotSettleable)
}

func TestSettleNoOpenWagersIsTrivialSuccess(t *testing.T) {
	fx := finalFixture(18, 12)
	p, _, publ, _ := newProcessor(fx)

	report, err := p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Zero(t, report.Settled)
	assert.Empty(t, publ.settled)
}

func TestSettleLeaseHeld(t *testing.T) {
	fx := finalFixture(18, 12)
	p, _, _, _ := newProcessor(fx, openWager("w1", "home", 10_00, 1.8))

	_, err := p.Lease.Acquire(context.Background(), "lease:settle:fx1", time.Minute)
	require.NoError(t, err)

	_, err = p.Settle(context.Background(), "fx1")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestSettlePartialFailureThenRetry(t *testing.T) {
	fx := finalFixture(18, 12)
	p, wagers, _, _ := newProcessor(fx,
		openWager("w1", "home", 10_00, 1.8),
		openWager("w2", "home", 20_00, 1.8),
	)
	wagers.failOnce["w2"] = errors.New("db connection reset")

	report, err := p.Settle(context.Background(), "fx1")
	assert.ErrorIs(t, err, ErrPartialSettlement)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, []string{"w2"}, report.FailedIDs)

	// w2 segue OPEN, então o retry só toca nela; w1 não é re-liquidada
	report, err = p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, wager.StatusWon, wagers.wagers["w2"].Status)

	// terceiro settle é no-op completo
	report, err = p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Zero(t, report.Settled)
	assert.Zero(t, report.Skipped)
}

func TestSettleSkipsAlreadySettledRace(t *testing.T) {
	fx := finalFixture(18, 12)
	p, wagers, _, _ := newProcessor(fx, openWager("w1", "home", 10_00, 1.8))

	// injeta o erro idempotente do banco: outra execução cruzou no meio
	wagers.failOnce["w1"] = wager.ErrAlreadySettled

	report, err := p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Zero(t, report.Settled)
	assert.Equal(t, 1, report.Skipped)

	// duplicata de payout também é skip, nunca erro
	wagers.failOnce["w1"] = ledger.ErrDuplicateTransaction
	report, err = p.Settle(context.Background(), "fx1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
}
