package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	sdto "github.com/radieske/settlement-engine/internal/results-simulator/dto"
	"github.com/radieske/settlement-engine/internal/shared/config"
	"github.com/radieske/settlement-engine/internal/shared/logger"
	"github.com/radieske/settlement-engine/internal/shared/metrics"
)

// Catálogo fixo de confrontos por rodada. Quatro jogos por rodada,
// rotação simples dos times.
var teams = []string{
	"Broncos", "Storm", "Panthers", "Roosters",
	"Rabbitohs", "Sea Eagles", "Sharks", "Cowboys",
}

var venues = []string{
	"Suncorp Stadium", "AAMI Park", "BlueBet Stadium", "Allianz Stadium",
}

// Métricas Prometheus para monitoramento do simulador
var (
	drawRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_draw_requests_total",
		Help: "Requisições ao endpoint /draw por desfecho",
	}, []string{"result"})
)

// Duração simulada de cada fase do jogo — comprimida pra demo.
const (
	preDuration  = 90 * time.Second
	liveDuration = 60 * time.Second
)

// simulator serve snapshots determinísticos que evoluem no tempo:
// upcoming antes do kickoff, live durante e fulltime depois, com placar
// estável derivado do source_id.
type simulator struct {
	log       *zap.Logger
	start     time.Time
	failRate  int             // % de respostas 500
	postponed map[string]bool // source_ids forçados a postponed
	cancelled map[string]bool // source_ids forçados a cancelled
}

func (s *simulator) drawHandler(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(r.URL.Query().Get("round"))
	if err != nil || round < 1 {
		drawRequests.WithLabelValues("bad_request").Inc()
		http.Error(w, "round required", http.StatusBadRequest)
		return
	}
	season, err := strconv.Atoi(r.URL.Query().Get("season"))
	if err != nil {
		drawRequests.WithLabelValues("bad_request").Inc()
		http.Error(w, "season required", http.StatusBadRequest)
		return
	}

	// Instabilidade proposital: a fonte real cai e limita scrapers.
	if s.failRate > 0 && rand.Intn(100) < s.failRate {
		if rand.Intn(3) == 0 {
			drawRequests.WithLabelValues("rate_limited").Inc()
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		drawRequests.WithLabelValues("error").Inc()
		http.Error(w, "upstream error", http.StatusInternalServerError)
		return
	}

	resp := sdto.DrawResponse{RoundNumber: round, Year: season}
	now := time.Now().UTC()
	for i := 0; i < 4; i++ {
		resp.Fixtures = append(resp.Fixtures, s.fixtureAt(round, season, i, now))
	}

	drawRequests.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// fixtureAt monta o estado corrente de um confronto da rodada.
func (s *simulator) fixtureAt(round, season, idx int, now time.Time) sdto.DrawFixture {
	home := teams[(round+idx*2)%len(teams)]
	away := teams[(round+idx*2+1)%len(teams)]
	sourceID := fmt.Sprintf("NRL-%d-R%d-G%d", season, round, idx+1)

	// Jogos da rodada largam escalonados a partir do start do processo.
	kickoff := s.start.Add(preDuration + time.Duration(round-1)*4*liveDuration +
		time.Duration(idx)*liveDuration/2)

	f := sdto.DrawFixture{
		SourceID:  sourceID,
		HomeTeam:  home,
		AwayTeam:  away,
		Venue:     venues[idx%len(venues)],
		KickoffAt: kickoff.Format(time.RFC3339),
		HomeOdds:  stableOdds(sourceID, "home"),
		AwayOdds:  stableOdds(sourceID, "away"),
	}

	switch {
	case s.cancelled[sourceID]:
		f.MatchMode, f.MatchState = "pre", "cancelled"
	case s.postponed[sourceID]:
		f.MatchMode, f.MatchState = "pre", "postponed"
	case now.Before(kickoff):
		f.MatchMode, f.MatchState = "pre", "upcoming"
	case now.Before(kickoff.Add(liveDuration)):
		f.MatchMode, f.MatchState = "live", "live"
		hs, as := liveScore(sourceID, now.Sub(kickoff))
		f.HomeScore, f.AwayScore = &hs, &as
	default:
		f.MatchMode, f.MatchState = "post", "fulltime"
		hs, as := finalScore(sourceID)
		f.HomeScore, f.AwayScore = &hs, &as
	}
	return f
}

// stableOdds deriva odds fixas do source_id — snapshots repetidos são
// idênticos byte a byte.
func stableOdds(sourceID, side string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sourceID + side))
	return 1.30 + float64(h.Sum32()%220)/100.0
}

// finalScore deriva o placar final do source_id, também determinístico.
func finalScore(sourceID string) (int, int) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sourceID))
	v := h.Sum32()
	return int(v % 40), int((v / 40) % 40)
}

// liveScore cresce em direção ao placar final conforme o jogo avança.
func liveScore(sourceID string, elapsed time.Duration) (int, int) {
	hs, as := finalScore(sourceID)
	frac := float64(elapsed) / float64(liveDuration)
	if frac > 1 {
		frac = 1
	}
	return int(float64(hs) * frac), int(float64(as) * frac)
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	rand.Seed(time.Now().UnixNano())

	prometheus.MustRegister(drawRequests)

	failRate := 10
	if v, err := strconv.Atoi(getenv("SIM_FAIL_RATE", "10")); err == nil {
		failRate = v
	}
	sim := &simulator{
		log:       log,
		start:     time.Now().UTC(),
		failRate:  failRate,
		postponed: idSet(os.Getenv("SIM_POSTPONED_IDS")),
		cancelled: idSet(os.Getenv("SIM_CANCELLED_IDS")),
	}

	appMux := http.NewServeMux()
	appMux.HandleFunc("/draw", sim.drawHandler)

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("results simulator running",
		zap.String("addr", addr),
		zap.Int("fail_rate_pct", failRate))
	if err := http.ListenAndServe(addr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// idSet parseia uma lista "id1,id2" em conjunto.
func idSet(csv string) map[string]bool {
	out := map[string]bool{}
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = true
		}
	}
	return out
}
