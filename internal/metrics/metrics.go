// Package metrics exposes engine-level statistics through prometheus
// collectors, for embedding applications that already scrape a
// /metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds the collectors one Database instance reports through.
type Registry struct {
	Inserts         prometheus.Counter
	Updates         prometheus.Counter
	Removes         prometheus.Counter
	WALBytesWritten prometheus.Counter
	Checkpoints     prometheus.Counter
	VacuumRuns      prometheus.Counter
	TableRows       *prometheus.GaugeVec
}

// NewRegistry creates a Registry and registers its collectors with reg
// (typically prometheus.DefaultRegisterer, or a private registry for
// tests).
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ndb",
			Name:      "inserts_total",
			Help:      "Total number of successful insert operations.",
		}),
		Updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ndb",
			Name:      "updates_total",
			Help:      "Total number of successful update operations.",
		}),
		Removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ndb",
			Name:      "removes_total",
			Help:      "Total number of successful remove operations.",
		}),
		WALBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ndb",
			Name:      "wal_bytes_written_total",
			Help:      "Total bytes appended to the write-ahead log.",
		}),
		Checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ndb",
			Name:      "checkpoints_total",
			Help:      "Total number of checkpoints taken.",
		}),
		VacuumRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ndb",
			Name:      "vacuum_runs_total",
			Help:      "Total number of vacuum passes completed.",
		}),
		TableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ndb",
			Name:      "table_rows",
			Help:      "Current row count per primary table.",
		}, []string{"table"}),
	}

	for _, c := range []prometheus.Collector{
		r.Inserts, r.Updates, r.Removes, r.WALBytesWritten, r.Checkpoints, r.VacuumRuns, r.TableRows,
	} {
		reg.MustRegister(c)
	}

	return r
}
