package autobet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/prediction"
	"github.com/radieske/settlement-engine/internal/wager"
)

func TestStakeFor(t *testing.T) {
	// confiança alta e odd justa: Kelly positivo, mas sempre abaixo do
	// teto de 10% do saldo
	stake := stakeFor(100_00, 0.70, 2.0)
	assert.Greater(t, stake, int64(0))
	assert.LessOrEqual(t, stake, int64(10_00))

	// sem edge (p implícito da odd maior que a confiança): não aposta
	assert.Zero(t, stakeFor(100_00, 0.40, 2.0))

	// odd <= 1.0 nunca gera stake
	assert.Zero(t, stakeFor(100_00, 0.90, 1.0))

	// edge enorme bate no teto exato
	assert.Equal(t, int64(10_00), stakeFor(100_00, 0.99, 10.0))
}

type fakePredictor struct {
	pred *prediction.Prediction
	err  error
}

func (f *fakePredictor) Predict(context.Context, string, string) (*prediction.Prediction, error) {
	return f.pred, f.err
}

type fakeFixtures struct{ fixtures []fixture.Fixture }

func (f *fakeFixtures) ListByRound(context.Context, int, int) ([]fixture.Fixture, error) {
	return f.fixtures, nil
}

type fakeWagers struct {
	placed []wager.PlaceParams
	err    error
}

func (f *fakeWagers) Place(_ context.Context, p wager.PlaceParams) (*wager.Wager, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.placed = append(f.placed, p)
	return &wager.Wager{ID: "w1", Status: wager.StatusOpen}, nil
}

type fakeBalances struct{ balance int64 }

func (f *fakeBalances) CurrentBalance(context.Context, string) (int64, error) {
	return f.balance, nil
}

type fakeBots struct{ ids []string }

func (f *fakeBots) ListBots(context.Context) ([]string, error) { return f.ids, nil }

func newService(pred *fakePredictor, fixtures []fixture.Fixture) (*Service, *fakeWagers) {
	wagers := &fakeWagers{}
	s := &Service{
		Log:       zap.NewNop(),
		Predictor: pred,
		Fixtures:  &fakeFixtures{fixtures: fixtures},
		Wagers:    wagers,
		Balances:  &fakeBalances{balance: 100_00},
		Bots:      &fakeBots{ids: []string{"bot-1", "bot-2"}},
	}
	return s, wagers
}

func scheduled(id string, home, away float64) fixture.Fixture {
	return fixture.Fixture{
		ID: id, Status: fixture.StatusScheduled,
		HomeTeam: "Broncos", AwayTeam: "Storm",
		HomeOdds: home, AwayOdds: away,
	}
}

func TestRunPlacesForEveryBot(t *testing.T) {
	pred := &fakePredictor{pred: &prediction.Prediction{Winner: "home", Confidence: 0.70}}
	s, wagers := newService(pred, []fixture.Fixture{scheduled("fx1", 2.0, 2.0)})

	report, err := s.Run(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Placed)
	require.Len(t, wagers.placed, 2)
	assert.Equal(t, "home", wagers.placed[0].Selection)
	assert.Equal(t, "fx1", wagers.placed[0].FixtureID)
}

func TestRunSkipsWithoutPrediction(t *testing.T) {
	pred := &fakePredictor{err: prediction.ErrUnavailable}
	s, wagers := newService(pred, []fixture.Fixture{scheduled("fx1", 2.0, 2.0)})

	report, err := s.Run(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Zero(t, report.Placed)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, wagers.placed)
}

func TestRunSkipsLowConfidence(t *testing.T) {
	pred := &fakePredictor{pred: &prediction.Prediction{Winner: "away", Confidence: 0.51}}
	s, wagers := newService(pred, []fixture.Fixture{scheduled("fx1", 2.0, 2.0)})

	report, err := s.Run(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Zero(t, report.Placed)
	assert.Empty(t, wagers.placed)
	assert.Equal(t, 1, report.Skipped)
}

func TestRunIgnoresNonScheduledFixtures(t *testing.T) {
	pred := &fakePredictor{pred: &prediction.Prediction{Winner: "home", Confidence: 0.70}}
	live := scheduled("fx1", 2.0, 2.0)
	live.Status = fixture.StatusInProgress
	s, wagers := newService(pred, []fixture.Fixture{live})

	report, err := s.Run(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Zero(t, report.Placed)
	assert.Empty(t, wagers.placed)
}

func TestRunClosedFixtureCountsAsSkip(t *testing.T) {
	pred := &fakePredictor{pred: &prediction.Prediction{Winner: "home", Confidence: 0.70}}
	s, wagers := newService(pred, []fixture.Fixture{scheduled("fx1", 2.0, 2.0)})
	wagers.err = wager.ErrFixtureClosed

	report, err := s.Run(context.Background(), 5, 2026)
	require.NoError(t, err)
	assert.Zero(t, report.Placed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 2, report.Skipped) // um por bot
}
