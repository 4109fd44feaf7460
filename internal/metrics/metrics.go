// Package metrics собирает prometheus-метрики планировщика сессий.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coach_scheduler"

// Metrics коллекторы планировщика. Нулевой указатель допустим: методы ничего не делают.
type Metrics struct {
	proposals          *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	negotiations       *prometheus.CounterVec
	deliveries         *prometheus.CounterVec
	staleAccepts       prometheus.Counter
	pendingResolutions prometheus.Gauge
}

// MustNewMetrics регистрирует коллекторы в reg и паникует при ошибке регистрации.
// Уже зарегистрированные коллекторы с тем же именем переиспользуются.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "proposals_total",
			Help:      "Session proposals checked by the conflict detector, by outcome.",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "conflicts_detected_total",
			Help:      "Conflicts detected when proposing a session, by conflict type.",
		}, []string{"type"}),
		negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "negotiations",
			Name:      "transitions_total",
			Help:      "Committed negotiation state transitions, by target state.",
		}, []string{"state"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "negotiations",
			Name:      "deliveries_total",
			Help:      "Proposal message deliveries, by result.",
		}, []string{"result"}),
		staleAccepts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "negotiations",
			Name:      "stale_accepts_total",
			Help:      "Accepts rejected because the chosen slot was taken meanwhile.",
		}),
		pendingResolutions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "negotiations",
			Name:      "pending",
			Help:      "Negotiations not yet accepted or abandoned.",
		}),
	}

	m.proposals = register(reg, m.proposals)
	m.conflicts = register(reg, m.conflicts)
	m.negotiations = register(reg, m.negotiations)
	m.deliveries = register(reg, m.deliveries)
	m.staleAccepts = register(reg, m.staleAccepts)
	m.pendingResolutions = register(reg, m.pendingResolutions)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveProposal учитывает результат проверки предложенной сессии
func (m *Metrics) ObserveProposal(outcome string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(outcome).Inc()
}

// ObserveConflict учитывает обнаруженный конфликт
func (m *Metrics) ObserveConflict(conflictType string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(conflictType).Inc()
}

// ObserveTransition учитывает переход переговоров в состояние state
func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.negotiations.WithLabelValues(state).Inc()
}

// ObserveDelivery учитывает отправку предложения клиенту
func (m *Metrics) ObserveDelivery(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) IncStaleAccept() {
	if m == nil {
		return
	}
	m.staleAccepts.Inc()
}

// SetPending выставляет число незавершённых переговоров
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingResolutions.Set(float64(n))
}
