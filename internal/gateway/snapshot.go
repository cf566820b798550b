package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Hints normalizados do estado de um fixture na fonte externa.
const (
	HintUpcoming  = "upcoming"
	HintLive      = "live"
	HintFullTime  = "fulltime"
	HintPostponed = "postponed"
	HintCancelled = "cancelled"
	HintUnknown   = "unknown"
)

// Record é um fixture como visto pela fonte externa num instante.
type Record struct {
	SourceID   string
	HomeTeam   string
	AwayTeam   string
	Venue      string
	KickoffAt  time.Time
	StatusHint string // um dos Hint*
	HomeScore  *int
	AwayScore  *int
	HomeOdds   float64 // 0 = não publicado
	AwayOdds   float64
}

// Snapshot é o lote normalizado de uma rodada.
type Snapshot struct {
	RoundNumber int
	Year        int
	FetchedAt   time.Time
	Records     []Record
}

// Hash deriva a versão do registro (o SyncCursor): mesmo conteúdo,
// mesmo hash — é o que torna a re-aplicação um no-op.
func (r Record) Hash() string {
	var hs, as string
	if r.HomeScore != nil {
		hs = fmt.Sprintf("%d", *r.HomeScore)
	}
	if r.AwayScore != nil {
		as = fmt.Sprintf("%d", *r.AwayScore)
	}
	canon := strings.Join([]string{
		r.SourceID,
		r.StatusHint,
		hs, as,
		fmt.Sprintf("%.3f", r.HomeOdds),
		fmt.Sprintf("%.3f", r.AwayOdds),
		r.KickoffAt.UTC().Format(time.RFC3339),
	}, "|")
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])
}

// HasFinalScore informa se o registro traz placar completo.
func (r Record) HasFinalScore() bool {
	return r.HomeScore != nil && r.AwayScore != nil
}

// normalizeHint traduz os campos crus da fonte (matchMode/matchState)
// para o hint da aplicação.
func normalizeHint(mode, state string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	state = strings.ToLower(strings.TrimSpace(state))

	switch {
	case mode == "post" || state == "fulltime":
		return HintFullTime
	case mode == "live" || state == "live":
		return HintLive
	case state == "postponed":
		return HintPostponed
	case state == "cancelled" || state == "abandoned":
		return HintCancelled
	case mode == "pre" && state == "upcoming":
		return HintUpcoming
	default:
		return HintUnknown
	}
}
