package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "booking_attempts_total",
			Help:      "Count of booking submissions by outcome.",
		},
		[]string{"outcome"},
	)

	commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reserva",
			Name:      "booking_commit_duration_seconds",
			Help:      "Time spent inside the slot lock re-checking and inserting.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	availabilityQueries = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reserva",
			Name:      "availability_query_duration_seconds",
			Help:      "Latency of availability queries by kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "notifications_total",
			Help:      "Count of notification deliveries by channel and result.",
		},
		[]string{"channel", "result"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reserva",
			Name:      "restaurant_cache_lookups_total",
			Help:      "Restaurant cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingAttempts, commitDuration, availabilityQueries, notifications, cacheLookups)
	})
}

func IncBookingAttempt(outcome string) {
	bookingAttempts.WithLabelValues(outcome).Inc()
}

func ObserveCommit(d time.Duration) {
	commitDuration.Observe(d.Seconds())
}

func IncNotification(channel, result string) {
	notifications.WithLabelValues(channel, result).Inc()
}

func IncCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// Recorder adapts the package-level collectors to the observer interfaces of the
// slots and booking services.
type Recorder struct{}

func (Recorder) ObserveAvailabilityQuery(kind string, d time.Duration) {
	availabilityQueries.WithLabelValues(kind).Observe(d.Seconds())
}

func (Recorder) BookingAttempt(outcome string) { IncBookingAttempt(outcome) }

func (Recorder) BookingCommitted(d time.Duration) { ObserveCommit(d) }
