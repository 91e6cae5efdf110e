// Package metrics exposes Prometheus metrics for storage and bot activity.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"CatalogBot/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec

	CategoriesCreated prometheus.Counter
	CategoriesDeleted prometheus.Counter
	SegmentsCaptured  prometheus.Counter
	Replays           *prometheus.CounterVec
	Updates           *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		CategoriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categories_created_total",
			Help:      "Total number of categories created",
		}),
		CategoriesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categories_deleted_total",
			Help:      "Total number of categories deleted",
		}),
		SegmentsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_segments_captured_total",
			Help:      "Total number of message segments captured",
		}),
		Replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_replays_total",
				Help:      "Total number of description replays",
			},
			[]string{"status"},
		),
		Updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telegram_updates_total",
				Help:      "Total number of Telegram updates handled",
			},
			[]string{"kind"},
		),
	}

	c.registry.MustRegister(
		c.StoreOperations,
		c.StoreDuration,
		c.CategoriesCreated,
		c.CategoriesDeleted,
		c.SegmentsCaptured,
		c.Replays,
		c.Updates,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observe records one storage call.
func (c *Collector) Observe(operation, backend string, started time.Time, err error) {
	c.StoreOperations.WithLabelValues(operation, backend, status(err)).Inc()
	c.StoreDuration.WithLabelValues(operation, backend).Observe(time.Since(started).Seconds())
}

func (c *Collector) ObserveReplay(err error) {
	c.Replays.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
