package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flawless",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	chatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flawless",
			Name:      "chat_turns_total",
			Help:      "Count of chat turns by outcome.",
		},
		[]string{"outcome"},
	)

	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flawless",
			Name:      "agent_tool_calls_total",
			Help:      "Count of agent tool invocations by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flawless",
			Name:      "booking_created_total",
			Help:      "Count of bookings created.",
		},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flawless",
			Name:      "booking_slot_conflicts_total",
			Help:      "Count of booking attempts rejected because the slot was taken.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, chatTurns, toolCalls, bookingCreated, slotConflicts)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncChatTurn(outcome string) {
	chatTurns.WithLabelValues(outcome).Inc()
}

func IncToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncSlotConflict() {
	slotConflicts.Inc()
}
