package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	AccountsLinkedTotal      prometheus.Counter
	LinkFailuresTotal        prometheus.Counter
	DiscoveryAttemptsTotal   prometheus.Counter
	DiscoveryEmptyTotal      prometheus.Counter
	DiscoveryTimeoutTotal    prometheus.Counter
	SelectionsCommittedTotal prometheus.Counter
	ActiveWizardsGauge       prometheus.Gauge
)

// InitCustomMetrics initializes and registers the linking pipeline metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	AccountsLinkedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adlink_accounts_linked_total",
		Help: "Total number of completed OAuth exchanges.",
	})
	LinkFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adlink_link_failures_total",
		Help: "Total number of failed OAuth exchanges, denials included.",
	})
	DiscoveryAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adlink_discovery_attempts_total",
		Help: "Total number of resource discovery fan-out rounds.",
	})
	DiscoveryEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adlink_discovery_empty_total",
		Help: "Total number of discovery runs that exhausted retries with no assets.",
	})
	DiscoveryTimeoutTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adlink_discovery_timeout_total",
		Help: "Total number of discovery runs stopped by the hard timeout.",
	})
	SelectionsCommittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adlink_selections_committed_total",
		Help: "Total number of committed asset selections.",
	})
	ActiveWizardsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adlink_active_wizards_gauge",
		Help: "Current number of mounted selection wizards.",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	for name, c := range map[string]prometheus.Collector{
		"AccountsLinkedTotal":      AccountsLinkedTotal,
		"LinkFailuresTotal":        LinkFailuresTotal,
		"DiscoveryAttemptsTotal":   DiscoveryAttemptsTotal,
		"DiscoveryEmptyTotal":      DiscoveryEmptyTotal,
		"DiscoveryTimeoutTotal":    DiscoveryTimeoutTotal,
		"SelectionsCommittedTotal": SelectionsCommittedTotal,
		"ActiveWizardsGauge":       ActiveWizardsGauge,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msgf("Failed to register %s metric", name)
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}

// The pipeline records through these helpers so code paths stay safe when the
// metrics were never initialized, as in unit tests.

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

func IncAccountsLinked()      { inc(AccountsLinkedTotal) }
func IncLinkFailures()        { inc(LinkFailuresTotal) }
func IncDiscoveryAttempts()   { inc(DiscoveryAttemptsTotal) }
func IncDiscoveryEmpty()      { inc(DiscoveryEmptyTotal) }
func IncDiscoveryTimeout()    { inc(DiscoveryTimeoutTotal) }
func IncSelectionsCommitted() { inc(SelectionsCommittedTotal) }

func WizardMounted() {
	if ActiveWizardsGauge != nil {
		ActiveWizardsGauge.Inc()
	}
}

func WizardDiscarded() {
	if ActiveWizardsGauge != nil {
		ActiveWizardsGauge.Dec()
	}
}
