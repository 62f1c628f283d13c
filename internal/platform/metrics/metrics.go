// Package metrics carries the prometheus instrumentation for the ledger
// client. A nil *Set is valid and records nothing, so wiring is optional.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Set struct {
	txOutcomes       *prometheus.CounterVec
	decodeSkips      prometheus.Counter
	catalogRefreshes *prometheus.CounterVec
	providerFailures prometheus.Counter
}

// New registers the client collectors with reg. Passing nil registers with
// the default registerer.
func New(reg prometheus.Registerer) *Set {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Set{
		txOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_tx_outcomes_total",
			Help: "Terminal transaction outcomes by intent kind and status.",
		}, []string{"kind", "status"}),
		decodeSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "shop_catalog_decode_skips_total",
			Help: "Records skipped during catalog loads because they failed to decode.",
		}),
		catalogRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_catalog_refreshes_total",
			Help: "Catalog refresh attempts by result.",
		}, []string{"result"}),
		providerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shop_provider_failures_total",
			Help: "Wallet provider requests that failed at the transport level.",
		}),
	}
}

func (s *Set) TxOutcome(kind, status string) {
	if s == nil {
		return
	}
	s.txOutcomes.WithLabelValues(kind, status).Inc()
}

func (s *Set) DecodeSkip() {
	if s == nil {
		return
	}
	s.decodeSkips.Inc()
}

func (s *Set) CatalogRefresh(result string) {
	if s == nil {
		return
	}
	s.catalogRefreshes.WithLabelValues(result).Inc()
}

func (s *Set) ProviderFailure() {
	if s == nil {
		return
	}
	s.providerFailures.Inc()
}
