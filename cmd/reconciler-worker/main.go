package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/settlement-engine/internal/autobet"
	"github.com/radieske/settlement-engine/internal/fixture"
	"github.com/radieske/settlement-engine/internal/gateway"
	"github.com/radieske/settlement-engine/internal/ledger"
	"github.com/radieske/settlement-engine/internal/lease"
	"github.com/radieske/settlement-engine/internal/notify"
	"github.com/radieske/settlement-engine/internal/oddscache"
	"github.com/radieske/settlement-engine/internal/participant"
	"github.com/radieske/settlement-engine/internal/prediction"
	"github.com/radieske/settlement-engine/internal/reconciler"
	"github.com/radieske/settlement-engine/internal/reconciler/producer"
	"github.com/radieske/settlement-engine/internal/schedule"
	"github.com/radieske/settlement-engine/internal/settlement"
	"github.com/radieske/settlement-engine/internal/shared/cache"
	"github.com/radieske/settlement-engine/internal/shared/config"
	"github.com/radieske/settlement-engine/internal/shared/db"
	sharedkafka "github.com/radieske/settlement-engine/internal/shared/kafka"
	"github.com/radieske/settlement-engine/internal/shared/logger"
	"github.com/radieske/settlement-engine/internal/shared/metrics"
	"github.com/radieske/settlement-engine/internal/wager"
	"github.com/radieske/settlement-engine/pkg/contracts/events"
)

// Métricas Prometheus do worker
var (
	reconcileRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_runs_total",
		Help: "Execuções de reconciliação por desfecho",
	}, []string{"result"})
	transitionsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_transitions_applied_total",
		Help: "Transições de estado de fixture aplicadas",
	})
	transitionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_transitions_rejected_total",
		Help: "Transições ilegais rejeitadas",
	})
	correctionsSeen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_result_corrections_total",
		Help: "Correções de placar detectadas depois de FINAL",
	})
	correctionAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_correction_alerts_total",
		Help: "Alertas de correção consumidos do tópico",
	})
	wagersSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_wagers_settled_total",
		Help: "Apostas liquidadas por desfecho",
	}, []string{"status"})
	stageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_errors_total",
		Help: "Erros por fase do pipeline",
	}, []string{"stage"})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(reconcileRuns, transitionsApplied, transitionsRejected,
		correctionsSeen, correctionAlerts, wagersSettled, stageErrors)

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: lease distribuído, cache de odds e broadcast de saldo
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}

	// Kafka producer dos eventos de ciclo de vida
	publ := producer.NewKafkaProducer(cfg.KafkaBrokers,
		cfg.TopicFixtureFinal, cfg.TopicResultCorrection, cfg.TopicWagerSettled)
	defer publ.Close()

	// stores
	fixtures := fixture.NewPostgres(pg)
	wagers := wager.NewPostgres(pg)
	balances := ledger.NewPostgres(pg)
	participants := participant.NewPostgres(pg)
	rounds := schedule.NewRoundStore(pg)

	// integrações
	gw := gateway.NewClient(cfg.ResultsSourceURL, log)
	predictor := prediction.NewClient(cfg.PredictionURL, log)
	leases := lease.NewRedis(rdb)
	odds := oddscache.NewRedisCache(rdb, 5*time.Minute)
	broadcaster := notify.NewRedisBroadcaster(rdb, cfg.RedisBalanceChannel)

	settler := &settlement.Processor{
		Log:      log,
		Fixtures: fixtures,
		Wagers:   wagers,
		Balances: balances,
		Lease:    leases,
		Notify:   broadcaster,
		Publ:     publ,
		OnSettled: func(status string) {
			wagersSettled.WithLabelValues(status).Inc()
		},
		OnError: func(stage string) { stageErrors.WithLabelValues(stage).Inc() },
	}

	engine := &reconciler.Engine{
		Log:          log,
		Gw:           gw,
		Fixtures:     fixtures,
		Settler:      settler,
		Lease:        leases,
		Publ:         publ,
		Odds:         odds,
		OnAdvanced:   func() { transitionsApplied.Inc() },
		OnRejected:   func() { transitionsRejected.Inc() },
		OnCorrection: func() { correctionsSeen.Inc() },
		OnError:      func(stage string) { stageErrors.WithLabelValues(stage).Inc() },
	}

	populator := &schedule.Populator{Log: log, Gw: gw, Fixtures: fixtures, Rounds: rounds}
	bonus := &schedule.Bonus{Log: log, Ledger: balances, Notify: broadcaster}
	bots := &autobet.Service{
		Log:       log,
		Predictor: predictor,
		Fixtures:  fixtures,
		Wagers:    wagers,
		Balances:  balances,
		Bots:      participants,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(hctx context.Context) error {
		if err := pg.PingContext(hctx); err != nil {
			return err
		}
		return rdb.Ping(hctx).Err()
	})

	// Endpoints administrativos: gatilhos manuais do que o ticker faz
	adm := &admin{
		log:       log,
		engine:    engine,
		populator: populator,
		bonus:     bonus,
		bots:      bots,
		year:      cfg.SeasonYear,
	}
	go func() {
		addr := ":" + cfg.HTTPPort
		log.Info("admin endpoints", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, adm.router())
	}()

	// Correções pós-FINAL exigem intervenção manual: o consumidor só
	// existe pra gritar no log e na métrica até alguém olhar.
	go correctionAlertLoop(ctx, log, cfg)

	log.Info("reconciler-worker started",
		zap.Duration("sync_interval", cfg.SyncInterval),
		zap.Int("season_year", cfg.SeasonYear))

	runLoop(ctx, log, cfg, engine, rounds, bonus, bots)
	log.Info("reconciler-worker stopped")
}

func correctionAlertLoop(ctx context.Context, log *zap.Logger, cfg config.Config) {
	reader := sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicResultCorrection, "reconciler-correction-alerts")
	defer reader.Close()

	for {
		_, value, err := sharedkafka.ReadNext(ctx, reader)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("correction consumer read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var ev events.ResultCorrection
		if err := json.Unmarshal(value, &ev); err != nil {
			log.Error("correction consumer unmarshal", zap.Error(err))
			continue
		}
		correctionAlerts.Inc()
		log.Error("ALERTA: placar alterado depois de FINAL, revisar liquidação",
			zap.String("fixture_id", ev.FixtureID),
			zap.String("source_id", ev.SourceID),
			zap.Int("old_home", ev.OldHomeScore), zap.Int("old_away", ev.OldAwayScore),
			zap.Int("new_home", ev.NewHomeScore), zap.Int("new_away", ev.NewAwayScore))
	}
}

// runLoop é o scheduler: um tick por SyncInterval reconciliando a rodada
// corrente. Na virada de rodada aplica o bônus e dispara o autobet.
func runLoop(
	ctx context.Context,
	log *zap.Logger,
	cfg config.Config,
	engine *reconciler.Engine,
	rounds *schedule.RoundStore,
	bonus *schedule.Bonus,
	bots *autobet.Service,
) {
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	lastRound := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		round, ok, err := rounds.Current(ctx, cfg.SeasonYear, time.Now().UTC())
		if err != nil {
			log.Warn("current round lookup failed", zap.Error(err))
			stageErrors.WithLabelValues("current_round").Inc()
			continue
		}
		if !ok {
			log.Info("temporada sem rodada pendente, tick ocioso")
			continue
		}

		if round != lastRound {
			// virada de rodada: bônus idempotente + apostas dos bots
			if rep, err := bonus.Apply(ctx, round, cfg.SeasonYear); err != nil {
				log.Warn("round bonus failed", zap.Error(err))
			} else if rep.Credited > 0 {
				log.Info("bônus de rodada aplicado",
					zap.Int("round", round), zap.Int("credited", rep.Credited))
			}
			if rep, err := bots.Run(ctx, round, cfg.SeasonYear); err != nil {
				log.Warn("autobet failed", zap.Error(err))
			} else if rep.Placed > 0 {
				log.Info("apostas automáticas colocadas",
					zap.Int("round", round), zap.Int("placed", rep.Placed))
			}
			lastRound = round
		}

		report, err := engine.Reconcile(ctx, round, cfg.SeasonYear)
		switch {
		case err == nil:
			reconcileRuns.WithLabelValues("ok").Inc()
			log.Info("tick concluído",
				zap.Int("round", round),
				zap.Int("advanced", report.Advanced),
				zap.Int("noops", report.NoOps),
				zap.Int("rejected", report.Rejected),
				zap.Int("settlements", len(report.Settlements)))
		case errors.Is(err, reconciler.ErrAlreadyRunning):
			reconcileRuns.WithLabelValues("skipped").Inc()
			log.Info("tick pulado, outro worker segura o lease", zap.Int("round", round))
		case errors.Is(err, context.Canceled):
			return
		default:
			reconcileRuns.WithLabelValues("error").Inc()
			log.Warn("tick falhou", zap.Int("round", round), zap.Error(err))
		}
	}
}

// admin expõe os gatilhos manuais de operação.
type admin struct {
	log       *zap.Logger
	engine    *reconciler.Engine
	populator *schedule.Populator
	bonus     *schedule.Bonus
	bots      *autobet.Service
	year      int
}

func (a *admin) router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/reconcile", a.reconcile) // POST ?round=&year=
	mux.HandleFunc("/admin/populate", a.populate)   // POST ?year=&from=&to=
	mux.HandleFunc("/admin/autobet", a.autobet)     // POST ?round=&year=
	mux.HandleFunc("/admin/bonus", a.applyBonus)    // POST ?round=&year=
	return mux
}

func (a *admin) roundYear(r *http.Request) (int, int, error) {
	round, err := strconv.Atoi(r.URL.Query().Get("round"))
	if err != nil || round < 1 {
		return 0, 0, fmt.Errorf("round required")
	}
	year := a.year
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid year")
		}
	}
	return round, year, nil
}

func (a *admin) reconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	round, year, err := a.roundYear(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := a.engine.Reconcile(r.Context(), round, year)
	if errors.Is(err, reconciler.ErrAlreadyRunning) {
		http.Error(w, "reconcile already running", http.StatusConflict)
		return
	}
	if err != nil {
		a.log.Warn("manual reconcile failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, report)
}

func (a *admin) populate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		year = a.year
	}
	from, err1 := strconv.Atoi(q.Get("from"))
	to, err2 := strconv.Atoi(q.Get("to"))
	if err1 != nil || err2 != nil || from < 1 || to < from {
		http.Error(w, "from/to required", http.StatusBadRequest)
		return
	}
	report, err := a.populator.PopulateRange(r.Context(), year, from, to)
	if err != nil {
		a.log.Warn("populate failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, report)
}

func (a *admin) autobet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	round, year, err := a.roundYear(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := a.bots.Run(r.Context(), round, year)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

func (a *admin) applyBonus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	round, year, err := a.roundYear(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := a.bonus.Apply(r.Context(), round, year)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
