// Package metrics exports runtime measurements as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-drift/hostbridge/pkg/executor"
	"github.com/go-drift/hostbridge/pkg/nodes"
)

const namespace = "hostbridge"

// Collector records ticks, tasks and nodes. It satisfies bridge.Recorder.
type Collector struct {
	registry *prometheus.Registry

	ticks          *prometheus.CounterVec
	tickDuration   prometheus.Histogram
	triggersFired  prometheus.Counter
	tasksSpawned   *prometheus.CounterVec
	tasksPolled    *prometheus.CounterVec
	tasksPending   prometheus.Gauge
	nodesCreated   prometheus.Counter
	nodesDestroyed prometheus.Counter
	liveNodes      prometheus.Gauge
	roots          prometheus.Gauge
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Host ticks run, by result.",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one host tick.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .0167, .025, .05, .1},
		}),
		triggersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_fired_total",
			Help:      "Resource change triggers fired.",
		}),
		tasksSpawned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_spawned_total",
			Help:      "Tasks queued on the executor, by queue.",
		}, []string{"queue"}),
		tasksPolled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_polls_total",
			Help:      "Task polls, by outcome.",
		}, []string{"outcome"}),
		tasksPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_pending",
			Help:      "Tasks left pending after the last flush.",
		}),
		nodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_created_total",
			Help:      "Nodes created.",
		}),
		nodesDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_destroyed_total",
			Help:      "Nodes destroyed.",
		}),
		liveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes_live",
			Help:      "Nodes currently registered.",
		}),
		roots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roots_mounted",
			Help:      "Roots currently mounted.",
		}),
	}
	c.registry.MustRegister(
		c.ticks,
		c.tickDuration,
		c.triggersFired,
		c.tasksSpawned,
		c.tasksPolled,
		c.tasksPending,
		c.nodesCreated,
		c.nodesDestroyed,
		c.liveNodes,
		c.roots,
	)
	return c
}

// Registry returns the registry the collectors are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// NodeCreated implements tree.Observer.
func (c *Collector) NodeCreated(nodes.NodeID) {
	c.nodesCreated.Inc()
	c.liveNodes.Inc()
}

// NodesDestroyed implements tree.Observer.
func (c *Collector) NodesDestroyed(count int) {
	c.nodesDestroyed.Add(float64(count))
	c.liveNodes.Sub(float64(count))
}

// TaskSpawned implements executor.Observer.
func (c *Collector) TaskSpawned(local bool) {
	queue := "shared"
	if local {
		queue = "local"
	}
	c.tasksSpawned.WithLabelValues(queue).Inc()
}

// ObserveTick records one tick.
func (c *Collector) ObserveTick(d time.Duration, fired int, flush executor.FlushStats, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	c.ticks.WithLabelValues(result).Inc()
	c.tickDuration.Observe(d.Seconds())
	c.triggersFired.Add(float64(fired))
	c.tasksPolled.WithLabelValues("completed").Add(float64(flush.Completed))
	c.tasksPolled.WithLabelValues("requeued").Add(float64(flush.Requeued))
	c.tasksPolled.WithLabelValues("panicked").Add(float64(flush.Panicked))
	c.tasksPending.Set(float64(flush.Requeued))
}

// SetRoots records the number of mounted roots.
func (c *Collector) SetRoots(n int) {
	c.roots.Set(float64(n))
}
