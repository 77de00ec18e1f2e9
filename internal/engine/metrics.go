package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: сколько запусков стартовало
	RunsStarted *prometheus.CounterVec

	// Итоги запусков по статусу
	RunsFinished *prometheus.CounterVec

	// Latency: длительность запуска от старта до терминального статуса
	RunDuration *prometheus.HistogramVec

	// Мутации агентов: op = create/deploy/stop/update, outcome = success/validation/conflict/network/auth
	Mutations *prometheus.CounterVec

	// Ответы, отброшенные как устаревшие (sequence < последнего выданного)
	StaleDiscarded *prometheus.CounterVec

	// Latency вызовов бэкенда
	BackendDuration *prometheus.HistogramVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object: без регистратора метрики пишутся в локальный, никуда не подключенный реестр
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RunsStarted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_runs_started_total",
			Help: "Total number of started capability runs.",
		}, []string{"capability_id"}),

		RunsFinished: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_runs_finished_total",
			Help: "Total number of finished runs by terminal status.",
		}, []string{"capability_id", "status"}),

		RunDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_run_duration_seconds",
			Help:    "Histogram of run durations.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"capability_id", "status"}),

		Mutations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_agent_mutations_total",
			Help: "Agent mutations by operation and outcome.",
		}, []string{"op", "outcome"}),

		StaleDiscarded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_stale_responses_discarded_total",
			Help: "Backend responses discarded because a newer request was issued.",
		}, []string{"op"}),

		BackendDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_backend_request_duration_seconds",
			Help:    "Histogram of backend call latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op", "outcome"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "console_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"breaker"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "console_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}
