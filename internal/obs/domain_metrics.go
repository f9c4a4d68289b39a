package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CouponEvaluationTotal counts coupon evaluation outcomes by coupon kind.
	CouponEvaluationTotal *prometheus.CounterVec
	// CouponDiscountTotal accumulates the monetary discount granted per coupon kind.
	CouponDiscountTotal *prometheus.CounterVec
	// OfferMatchTotal counts offer matching outcomes per placement.
	OfferMatchTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout attempts by result.
	CheckoutTotal *prometheus.CounterVec
	// CartPricingLatency records cart snapshot pricing latency in milliseconds.
	CartPricingLatency prometheus.Histogram
	// CartMergeTotal counts cart merge operations by strategy taken.
	CartMergeTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CouponEvaluationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluation_total",
			Help:      "Count of coupon evaluation outcomes by coupon kind.",
		}, []string{"kind", "result"})
		CouponDiscountTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_discount_total",
			Help:      "Accumulated discount amount granted, labelled by coupon kind.",
		}, []string{"kind"})
		OfferMatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_match_total",
			Help:      "Count of offer matching outcomes per placement.",
		}, []string{"placement", "result"})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		CartPricingLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_pricing_duration_ms",
			Help:      "Latency of cart snapshot pricing in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		})
		CartMergeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merge_total",
			Help:      "Count of anonymous cart merges by strategy taken.",
		}, []string{"strategy"})

		mustRegisterCollector(reg, CouponEvaluationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponEvaluationTotal = v
			}
		})
		mustRegisterCollector(reg, CouponDiscountTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponDiscountTotal = v
			}
		})
		mustRegisterCollector(reg, OfferMatchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OfferMatchTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, CartPricingLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CartPricingLatency = v
			}
		})
		mustRegisterCollector(reg, CartMergeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMergeTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
