package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/sessions/1/book", "201", 0.25)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/sessions/1/book", "201"))
	assert.Equal(t, float64(1), count)
}

func TestRecordBooking(t *testing.T) {
	BookingsTotal.Reset()

	RecordBooking("confirmed", "class")
	RecordBooking("confirmed", "class")
	RecordBooking("waitlisted", "class")
	RecordBooking("confirmed", "pt")

	assert.Equal(t, float64(2), testutil.ToFloat64(BookingsTotal.WithLabelValues("confirmed", "class")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingsTotal.WithLabelValues("waitlisted", "class")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingsTotal.WithLabelValues("confirmed", "pt")))
}

func TestRecordWaitlistPromotionAndSkip(t *testing.T) {
	promotions := prometheus.NewCounter(prometheus.CounterOpts{Name: "moolai_waitlist_promotions_total_test"})
	skips := prometheus.NewCounter(prometheus.CounterOpts{Name: "moolai_waitlist_skips_total_test"})

	oldPromotions, oldSkips := WaitlistPromotionsTotal, WaitlistSkipsTotal
	WaitlistPromotionsTotal, WaitlistSkipsTotal = promotions, skips
	defer func() { WaitlistPromotionsTotal, WaitlistSkipsTotal = oldPromotions, oldSkips }()

	RecordWaitlistPromotion()
	RecordWaitlistSkip()
	RecordWaitlistSkip()

	assert.Equal(t, float64(1), testutil.ToFloat64(promotions))
	assert.Equal(t, float64(2), testutil.ToFloat64(skips))
}

func TestRecordCheckin(t *testing.T) {
	CheckinsTotal.Reset()

	RecordCheckin("gym")
	RecordCheckin("gym")
	RecordCheckin("class_only")

	assert.Equal(t, float64(2), testutil.ToFloat64(CheckinsTotal.WithLabelValues("gym")))
	assert.Equal(t, float64(1), testutil.ToFloat64(CheckinsTotal.WithLabelValues("class_only")))
}

func TestRecordDiscountRedemption(t *testing.T) {
	DiscountRedemptionsTotal.Reset()

	RecordDiscountRedemption("promo")
	RecordDiscountRedemption("voucher")
	RecordDiscountRedemption("voucher")

	assert.Equal(t, float64(1), testutil.ToFloat64(DiscountRedemptionsTotal.WithLabelValues("promo")))
	assert.Equal(t, float64(2), testutil.ToFloat64(DiscountRedemptionsTotal.WithLabelValues("voucher")))
}

func TestRecordSubscriptionOutcomes(t *testing.T) {
	renewals := prometheus.NewCounter(prometheus.CounterOpts{Name: "moolai_subscription_renewals_total_test"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "moolai_subscription_failures_total_test"})

	oldRenewals, oldFailures := SubscriptionRenewalsTotal, SubscriptionFailuresTotal
	SubscriptionRenewalsTotal, SubscriptionFailuresTotal = renewals, failures
	defer func() { SubscriptionRenewalsTotal, SubscriptionFailuresTotal = oldRenewals, oldFailures }()

	RecordSubscriptionRenewal()
	RecordSubscriptionRenewal()
	RecordSubscriptionFailure()

	assert.Equal(t, float64(2), testutil.ToFloat64(renewals))
	assert.Equal(t, float64(1), testutil.ToFloat64(failures))
}

func TestRecordGrantDebit(t *testing.T) {
	GrantDebitsTotal.Reset()

	RecordGrantDebit("membership")
	RecordGrantDebit("class_pass")

	assert.Equal(t, float64(1), testutil.ToFloat64(GrantDebitsTotal.WithLabelValues("membership")))
	assert.Equal(t, float64(1), testutil.ToFloat64(GrantDebitsTotal.WithLabelValues("class_pass")))
}
