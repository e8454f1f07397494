package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LeadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_leads_total",
			Help: "Lead submissions by outcome",
		},
		[]string{"outcome"}, // accepted|invalid|duplicate|error
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_notifications_total",
			Help: "Notification attempts by channel and outcome",
		},
		[]string{"channel", "outcome"}, // email|whatsapp , sent|duplicate|skipped|failed
	)

	ChatRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_chat_replies_total",
			Help: "Chat replies by the rule that produced them",
		},
		[]string{"source"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	ReportEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsite_report_events_total",
			Help: "Lead events handled by the reports worker",
		},
		[]string{"stage"}, // inserted|invalid|failed
	)
)

var once sync.Once

// MustRegister registers every collector once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			LeadsTotal,
			NotificationsTotal,
			ChatRepliesTotal,
			RateLimitedTotal,
			ReportEventsTotal,
		)
	})
}
