package monitoring

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	bookingsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_confirmed_total",
			Help: "Total booking confirmations by outcome",
		},
		[]string{"status"},
	)

	confirmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_confirm_duration_seconds",
			Help:    "Duration of the payment confirmation critical path",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	paymentOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Total payment gateway operations",
		},
		[]string{"operation", "status"},
	)

	draftsOutstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "booking_drafts_outstanding",
			Help: "Current number of unexpired booking drafts",
		},
	)

	chatRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_rooms_active",
			Help: "Current number of chat rooms with at least one connection",
		},
	)

	chatConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Current number of attached chat connections",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

// RoomStats is the slice of the chat hub the monitor polls.
type RoomStats interface {
	RoomCount() int
	ConnectionCount() int
}

type Monitor struct {
	redis *redis.Client
	chat  RoomStats
}

func NewMonitor(redisClient *redis.Client, chat RoomStats) *Monitor {
	monitor := &Monitor{redis: redisClient, chat: chat}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()

		m.collectDraftMetrics(ctx)
		m.collectChatMetrics()
		goroutineCount.Set(float64(runtime.NumGoroutine()))
	}
}

// collectDraftMetrics counts live draft keys with SCAN so a large keyspace
// never blocks redis the way KEYS would.
func (m *Monitor) collectDraftMetrics(ctx context.Context) {
	var cursor uint64
	var total int64
	for {
		keys, next, err := m.redis.Scan(ctx, cursor, "booking_draft:*", 200).Result()
		if err != nil {
			return
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	draftsOutstanding.Set(float64(total))
}

func (m *Monitor) collectChatMetrics() {
	if m.chat == nil {
		return
	}
	chatRooms.Set(float64(m.chat.RoomCount()))
	chatConnections.Set(float64(m.chat.ConnectionCount()))
}

// TrackConfirmation records one confirmation attempt and its duration.
func (m *Monitor) TrackConfirmation(status string, duration time.Duration) {
	bookingsConfirmed.WithLabelValues(status).Inc()
	confirmDuration.Observe(duration.Seconds())
}

// TrackPaymentOperation records a gateway call outcome.
func (m *Monitor) TrackPaymentOperation(operation, status string) {
	paymentOperations.WithLabelValues(operation, status).Inc()
}
