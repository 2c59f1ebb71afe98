package metrics

import (
	"net/http"
	"strconv"

	"marketplace/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// チェックアウトの観測。コミット成功後にだけ呼ばれる
type CheckoutMetrics struct {
	purchaseAmount        *prometheus.HistogramVec
	unitsSold             *prometheus.CounterVec
	categoriesPerPurchase prometheus.Histogram
	couponUsage           *prometheus.CounterVec
	discountAmount        *prometheus.HistogramVec
}

func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetrics(prometheus.DefaultRegisterer)
}

func newCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	purchaseAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "purchase_amount",
		Help:      "Final purchase totals in minor currency units.",
		Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
	}, []string{"date", "user"})

	unitsSold := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "units_sold_total",
		Help:      "Units sold per category.",
	}, []string{"category"})

	categoriesPerPurchase := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "categories_per_purchase",
		Help:      "Distinct categories per purchase.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13},
	})

	couponUsage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "coupon_usage_total",
		Help:      "Purchases with a coupon applied, per code.",
	}, []string{"code"})

	discountAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "marketplace",
		Subsystem: "checkout",
		Name:      "discount_amount",
		Help:      "Discount amounts in minor currency units, per coupon code.",
		Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"code"})

	reg.MustRegister(purchaseAmount, unitsSold, categoriesPerPurchase, couponUsage, discountAmount)

	return &CheckoutMetrics{
		purchaseAmount:        purchaseAmount,
		unitsSold:             unitsSold,
		categoriesPerPurchase: categoriesPerPurchase,
		couponUsage:           couponUsage,
		discountAmount:        discountAmount,
	}
}

func (m *CheckoutMetrics) RecordPurchase(rec usecase.PurchaseMetrics) {
	date := rec.Date.Format("2006-01-02")
	user := strconv.FormatInt(rec.UserID, 10)

	m.purchaseAmount.WithLabelValues(date, user).Observe(float64(rec.FinalTotal))

	for categoryID, units := range rec.UnitsByCategory {
		m.unitsSold.WithLabelValues(strconv.FormatInt(categoryID, 10)).Add(float64(units))
	}
	m.categoriesPerPurchase.Observe(float64(rec.DistinctCategories))

	if rec.CouponCode != "" {
		m.couponUsage.WithLabelValues(rec.CouponCode).Inc()
		m.discountAmount.WithLabelValues(rec.CouponCode).Observe(float64(rec.DiscountAmount))
	}
}

// GET /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
