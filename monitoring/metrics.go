package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Registration attempts by outcome status",
		},
		[]string{"status"},
	)

	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets minted per event",
		},
		[]string{"event_id"},
	)

	scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_scans_total",
			Help: "Gate scans by outcome",
		},
		[]string{"event_id", "result"},
	)

	checkedIn = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checked_in_total",
			Help: "Current checked-in count per event",
		},
		[]string{"event_id"},
	)

	eventTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickets_total",
			Help: "Issued ticket count per event",
		},
		[]string{"event_id"},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

// collectMetrics mirrors the live Redis counters into the gauges so the
// dashboards survive process restarts.
func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectEventCounters(ctx)
	}
}

func (m *Monitor) collectEventCounters(ctx context.Context) {
	countKeys, _ := m.redis.Keys(ctx, "checkin:count:*").Result()
	for _, key := range countKeys {
		eventID := key[len("checkin:count:"):]
		if val, err := m.redis.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				checkedIn.WithLabelValues(eventID).Set(float64(n))
			}
		}
	}

	totalKeys, _ := m.redis.Keys(ctx, "ticket:total:*").Result()
	for _, key := range totalKeys {
		eventID := key[len("ticket:total:"):]
		if val, err := m.redis.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				eventTotal.WithLabelValues(eventID).Set(float64(n))
			}
		}
	}
}

func (m *Monitor) RecordRegistration(status string) {
	registrations.WithLabelValues(status).Inc()
}

func (m *Monitor) RecordTicketIssued(eventID string) {
	ticketsIssued.WithLabelValues(eventID).Inc()
}

func (m *Monitor) RecordScan(eventID, result string) {
	scans.WithLabelValues(eventID, result).Inc()
}

func (m *Monitor) SetCheckedIn(eventID string, count int64) {
	checkedIn.WithLabelValues(eventID).Set(float64(count))
}
