package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProgressCounters is the progress-signal port consumed by the jobs. An
// external process watches these to infer that enumeration and migration have
// both caught up for a tenant.
type ProgressCounters interface {
	// IncNoNewDocuments records a discovery tick that found nothing left to
	// enumerate
	IncNoNewDocuments(tenantID string)
	// IncNoPendingMigrations records a migration tick that found no records
	// needing work
	IncNoPendingMigrations(tenantID string)
}

// Metrics holds the prometheus collectors for the migrator
type Metrics struct {
	NoNewDocuments      *prometheus.CounterVec
	NoPendingMigrations *prometheus.CounterVec
	RecordsDiscovered   *prometheus.CounterVec
	DocumentsProcessed  *prometheus.CounterVec
	TickDuration        *prometheus.HistogramVec
}

// NewMetrics creates and registers all migrator metrics with the given
// registerer
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}

	m.NoNewDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migrator_no_new_documents_total",
			Help: "Number of discovery ticks that observed no documents left to enumerate",
		},
		[]string{"tenant"},
	)

	m.NoPendingMigrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migrator_no_pending_migrations_total",
			Help: "Number of migration ticks that observed no records needing migration",
		},
		[]string{"tenant"},
	)

	m.RecordsDiscovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migrator_records_discovered_total",
			Help: "Number of migration records created by the discovery job",
		},
		[]string{"tenant"},
	)

	m.DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migrator_documents_processed_total",
			Help: "Number of per-document migration attempts partitioned by outcome",
		},
		[]string{"tenant", "outcome"},
	)

	m.TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "migrator_tick_duration_seconds",
			Help:    "Duration of job ticks partitioned by job name",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	collectors := []prometheus.Collector{
		m.NoNewDocuments,
		m.NoPendingMigrations,
		m.RecordsDiscovered,
		m.DocumentsProcessed,
		m.TickDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// IncNoNewDocuments implements ProgressCounters
func (m *Metrics) IncNoNewDocuments(tenantID string) {
	m.NoNewDocuments.WithLabelValues(tenantID).Inc()
}

// IncNoPendingMigrations implements ProgressCounters
func (m *Metrics) IncNoPendingMigrations(tenantID string) {
	m.NoPendingMigrations.WithLabelValues(tenantID).Inc()
}
