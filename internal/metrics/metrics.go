// Package metrics exports world population as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/l1jgo/tickecs/internal/core/ecs"
)

// Collector holds the tickecs metric vectors. Register it once and attach
// one Behavior per observed world.
type Collector struct {
	entities  *prometheus.GaugeVec
	tables    *prometheus.GaugeVec
	behaviors *prometheus.GaugeVec
	ticks     *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tickecs",
			Name:      "world_entities",
			Help:      "Visible entities per world.",
		}, []string{"world"}),
		tables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tickecs",
			Name:      "world_tables",
			Help:      "Visible tables per world.",
		}, []string{"world"}),
		behaviors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tickecs",
			Name:      "world_behaviors",
			Help:      "Visible behaviors per world.",
		}, []string{"world"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tickecs",
			Name:      "ticks_total",
			Help:      "Ticks observed per world.",
		}, []string{"world"}),
	}
}

// Register adds every metric to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.entities, c.tables, c.behaviors, c.ticks} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Behavior reports the population of the world it ticks in under the given
// label. The numbers are read after the tick's commit.
func (c *Collector) Behavior(world string) *ecs.Behavior {
	return &ecs.Behavior{
		Name: "metrics-" + world,
		OnTick: func(w *ecs.World, _, _ time.Duration, _ []any) {
			c.Observe(world, w)
		},
		OnDetach: func(*ecs.World) {
			c.entities.DeleteLabelValues(world)
			c.tables.DeleteLabelValues(world)
			c.behaviors.DeleteLabelValues(world)
		},
	}
}

// Observe records w's current population.
func (c *Collector) Observe(world string, w *ecs.World) {
	c.entities.WithLabelValues(world).Set(float64(w.Entities().Len()))
	c.tables.WithLabelValues(world).Set(float64(w.Tables().Len()))
	c.behaviors.WithLabelValues(world).Set(float64(w.Behaviors().Len()))
	c.ticks.WithLabelValues(world).Inc()
}
