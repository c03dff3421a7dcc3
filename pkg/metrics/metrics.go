// Package metrics содержит prometheus-счетчики консоли.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы операций.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// APIRequests считает исходящие запросы к удаленному API.
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "admin_console", Name: "api_requests_total", Help: "Outbound requests to the admin API by operation and outcome."},
		[]string{"operation", "outcome"},
	)
	// SessionTransitions считает переходы состояния сессии.
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "admin_console", Name: "session_transitions_total", Help: "Session state transitions by target state."},
		[]string{"state"},
	)
	// Notifications считает созданные уведомления по типу.
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "admin_console", Name: "notifications_total", Help: "Notifications added by kind."},
		[]string{"kind"},
	)
	// RateLimitRejected считает запросы, отклоненные ограничителем.
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "admin_console", Name: "rate_limit_rejected_total", Help: "Requests rejected by limiter."},
		[]string{"limiter"},
	)
	// Instances показывает число активных клиентских экземпляров.
	Instances = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "admin_console", Name: "instances", Help: "Live console client instances."},
	)
)

// RegisterCollectors регистрирует все коллекторы в reg.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests)
	reg.MustRegister(SessionTransitions)
	reg.MustRegister(Notifications)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Instances)
}

// Outcome переводит ошибку в метку исхода.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
