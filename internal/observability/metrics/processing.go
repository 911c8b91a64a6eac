package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kenny1338/better-paperless-ngx/internal/core/domain"
)

type ProcessingMetrics struct {
	service string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	llmTokensTotal  *prometheus.CounterVec
	llmCostTotal    *prometheus.CounterVec
	syncTotal       *prometheus.CounterVec
	syncDiscovered  *prometheus.HistogramVec
}

func NewProcessingMetrics(service string, registry *prometheus.Registry) *ProcessingMetrics {
	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "documents_total",
			Help:      "Total processed documents by strategy and status.",
		},
		[]string{"service", "strategy", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "document_duration_seconds",
			Help:      "Document processing duration in seconds by strategy and status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "strategy", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "documents_in_flight",
			Help:      "Number of documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "LLM tokens consumed while processing documents.",
		},
		[]string{"service", "strategy"},
	)
	llmCostTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "cost_usd_total",
			Help:      "Estimated LLM cost in USD.",
		},
		[]string{"service", "strategy"},
	)
	syncTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "syncs_total",
			Help:      "Total listener sync runs by trigger.",
		},
		[]string{"service", "trigger"},
	)
	syncDiscovered := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "discovered_documents",
			Help:      "New documents found per listener sync.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, llmTokensTotal, llmCostTotal, syncTotal, syncDiscovered)

	return &ProcessingMetrics{
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		llmTokensTotal:  llmTokensTotal,
		llmCostTotal:    llmCostTotal,
		syncTotal:       syncTotal,
		syncDiscovered:  syncDiscovered,
	}
}

func (m *ProcessingMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *ProcessingMetrics) FinishDocument(strategy string, result domain.ProcessingResult) {
	m.processInFlight.Dec()

	status := "success"
	switch {
	case result.Skipped:
		status = "skipped"
	case !result.Success:
		status = "failed"
	}

	m.processTotal.WithLabelValues(m.service, strategy, status).Inc()
	m.processDuration.WithLabelValues(m.service, strategy, status).Observe(result.ProcessingTime.Seconds())
	if result.TokensUsed > 0 {
		m.llmTokensTotal.WithLabelValues(m.service, strategy).Add(float64(result.TokensUsed))
	}
	if result.Cost > 0 {
		m.llmCostTotal.WithLabelValues(m.service, strategy).Add(result.Cost)
	}
}

func (m *ProcessingMetrics) RecordSync(trigger string, discovered int) {
	if trigger == "" {
		trigger = "unknown"
	}
	m.syncTotal.WithLabelValues(m.service, trigger).Inc()
	m.syncDiscovered.WithLabelValues(m.service).Observe(float64(discovered))
}
