package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moolai_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moolai_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moolai_bookings_total",
			Help: "Total number of booking requests by resulting status",
		},
		[]string{"status", "kind"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moolai_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	WaitlistPromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moolai_waitlist_promotions_total",
			Help: "Waitlisted bookings promoted to confirmed",
		},
	)

	WaitlistSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moolai_waitlist_skips_total",
			Help: "Waitlist entries skipped during promotion because their grant could not be debited",
		},
	)

	CheckinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moolai_checkins_total",
			Help: "Total number of member check-ins",
		},
		[]string{"type"},
	)

	GrantDebitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moolai_grant_debits_total",
			Help: "Entitlement grant debits by grant kind",
		},
		[]string{"kind"},
	)

	DiscountRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moolai_discount_redemptions_total",
			Help: "Promo and voucher redemptions",
		},
		[]string{"tag"},
	)

	SubscriptionRenewalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moolai_subscription_renewals_total",
			Help: "Successful subscription renewals",
		},
	)

	SubscriptionFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moolai_subscription_failures_total",
			Help: "Subscriptions moved to failed after exhausting billing retries",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moolai_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moolai_email_queue_depth",
			Help: "Emails waiting in the outbound queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(status, kind string) {
	BookingsTotal.WithLabelValues(status, kind).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordWaitlistPromotion() {
	WaitlistPromotionsTotal.Inc()
}

func RecordWaitlistSkip() {
	WaitlistSkipsTotal.Inc()
}

func RecordCheckin(checkinType string) {
	CheckinsTotal.WithLabelValues(checkinType).Inc()
}

func RecordGrantDebit(kind string) {
	GrantDebitsTotal.WithLabelValues(kind).Inc()
}

func RecordDiscountRedemption(tag string) {
	DiscountRedemptionsTotal.WithLabelValues(tag).Inc()
}

func RecordSubscriptionRenewal() {
	SubscriptionRenewalsTotal.Inc()
}

func RecordSubscriptionFailure() {
	SubscriptionFailuresTotal.Inc()
}

func SetEmailQueueDepth(n int64) {
	EmailQueueDepth.Set(float64(n))
}
