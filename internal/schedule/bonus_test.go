package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/ledger"
	"github.com/radieske/settlement-engine/internal/notify"
)

// fakeLedger emula o índice parcial do banco: um ADJUSTMENT por
// (participante, rodada, ano).
type fakeLedger struct {
	posted  []ledger.Transaction
	credits map[string]bool
	postErr map[string]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{credits: map[string]bool{}, postErr: map[string]error{}}
}

func (f *fakeLedger) key(t *ledger.Transaction) string {
	return t.ParticipantID
}

func (f *fakeLedger) Post(_ context.Context, t *ledger.Transaction) (string, error) {
	if err, ok := f.postErr[t.ParticipantID]; ok {
		return "", err
	}
	if f.credits[f.key(t)] {
		return "", ledger.ErrDuplicateTransaction
	}
	f.credits[f.key(t)] = true
	f.posted = append(f.posted, *t)
	return "tx-1", nil
}

func (f *fakeLedger) CurrentBalance(context.Context, string) (int64, error) {
	return 15_00, nil
}

func (f *fakeLedger) ListActiveParticipants(context.Context) ([]string, error) {
	return []string{"p1", "p2", "p3"}, nil
}

type fakeBroadcaster struct{ updates []notify.BalanceUpdate }

func (f *fakeBroadcaster) PublishBalanceUpdate(_ context.Context, u notify.BalanceUpdate) error {
	f.updates = append(f.updates, u)
	return nil
}

func TestBonusCreditsEveryParticipantOnce(t *testing.T) {
	led := newFakeLedger()
	bc := &fakeBroadcaster{}
	b := &Bonus{Log: zap.NewNop(), Ledger: led, Notify: bc}

	report, err := b.Apply(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Credited)
	assert.Zero(t, report.Skipped)

	for _, tx := range led.posted {
		assert.Equal(t, ledger.ReasonAdjustment, tx.Reason)
		assert.Equal(t, int64(DefaultBonusCents), tx.AmountCents)
		require.NotNil(t, tx.RoundNumber)
		assert.Equal(t, 5, *tx.RoundNumber)
		assert.Nil(t, tx.WagerID)
	}
	assert.Len(t, bc.updates, 3)
	assert.Equal(t, "round_bonus", bc.updates[0].Reason)

	// segunda aplicação é no-op completo: o banco barra a duplicata
	report, err = b.Apply(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Zero(t, report.Credited)
	assert.Equal(t, 3, report.Skipped)
	assert.Len(t, led.posted, 3)
}

func TestBonusFailureDoesNotStopOthers(t *testing.T) {
	led := newFakeLedger()
	led.postErr["p2"] = errors.New("db timeout")
	b := &Bonus{Log: zap.NewNop(), Ledger: led}

	report, err := b.Apply(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Credited)
	assert.Equal(t, 1, report.Failed)
}

func TestBonusCustomAmount(t *testing.T) {
	led := newFakeLedger()
	b := &Bonus{Log: zap.NewNop(), Ledger: led, AmountCents: 25_00}

	_, err := b.Apply(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(25_00), led.posted[0].AmountCents)
}
