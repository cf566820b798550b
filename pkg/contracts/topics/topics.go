package topics

const (
	// Ciclo de vida de fixtures
	FixtureFinal     = "fixture_final"
	ResultCorrection = "result_correction"

	// Liquidação
	WagerSettled = "wager_settled"
)
