package auction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_operations_total",
		Help: "Auction operations by name and outcome",
	}, []string{"op", "result"})
	operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auction_operation_duration_seconds",
		Help:    "Time spent executing auction operations",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"op"})
	liveAuctionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auction_live",
		Help: "Auctions created and not yet terminated by this process",
	})
)

// RegisterMetrics registers the auction collectors with reg
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{operationsCounter, operationDuration, liveAuctionsGauge} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func observe(op string, err error, elapsed time.Duration) {
	operationsCounter.WithLabelValues(op, Code(err)).Inc()
	operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
