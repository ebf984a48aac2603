package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the application metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	StaticRefreshes    *prometheus.CounterVec // result label: ok|error
	RealtimePolls      *prometheus.CounterVec // result label: ok|error
	AccessibleVehicles prometheus.Gauge

	TicketsCreated  *prometheus.CounterVec // category label
	BookingsCreated prometheus.Counter
	SheetWrites     *prometheus.CounterVec // result label: ok|error

	DialogTransitions prometheus.Counter
	UnexpectedInputs  prometheus.Counter
	BroadcastMessages *prometheus.CounterVec // result label: ok|error
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		StaticRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ogetbot_static_refreshes_total",
			Help: "Static feed refresh attempts by result.",
		}, []string{"result"}),
		RealtimePolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ogetbot_realtime_polls_total",
			Help: "Realtime feed poll attempts by result.",
		}, []string{"result"}),
		AccessibleVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ogetbot_accessible_vehicles",
			Help: "Accessible vehicles seen in the last completed poll.",
		}),
		TicketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ogetbot_tickets_created_total",
			Help: "Feedback tickets created by category.",
		}, []string{"category"}),
		BookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ogetbot_museum_bookings_total",
			Help: "Museum excursion bookings created.",
		}),
		SheetWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ogetbot_sheet_writes_total",
			Help: "Spreadsheet append attempts by result.",
		}, []string{"result"}),
		DialogTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ogetbot_dialog_transitions_total",
			Help: "Dialog state transitions processed by the engine.",
		}),
		UnexpectedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ogetbot_unexpected_inputs_total",
			Help: "User messages deleted by the unexpected-input handler.",
		}),
		BroadcastMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ogetbot_broadcast_messages_total",
			Help: "Broadcast deliveries by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.StaticRefreshes,
		c.RealtimePolls,
		c.AccessibleVehicles,
		c.TicketsCreated,
		c.BookingsCreated,
		c.SheetWrites,
		c.DialogTransitions,
		c.UnexpectedInputs,
		c.BroadcastMessages,
	)

	return c
}

// Handler exposes the registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
