package workflow

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus counters/gauges for workflow execution.
type Metrics struct {
	TasksStarted   prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TasksBlocked   prometheus.Counter
	TasksRunning   prometheus.Gauge
	BehaviorsFired *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide workflow metrics, registering them
// with the default Prometheus registry exactly once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			TasksStarted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "radium_workflow_tasks_started_total",
				Help: "Total number of workflow steps launched",
			}),
			TasksCompleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "radium_workflow_tasks_completed_total",
				Help: "Total number of workflow steps that completed successfully",
			}),
			TasksFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "radium_workflow_tasks_failed_total",
				Help: "Total number of workflow steps that failed",
			}),
			TasksBlocked: promauto.NewCounter(prometheus.CounterOpts{
				Name: "radium_workflow_tasks_blocked_total",
				Help: "Total number of workflow steps blocked by a failed dependency",
			}),
			TasksRunning: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "radium_workflow_tasks_running",
				Help: "Current number of concurrently running workflow steps",
			}),
			BehaviorsFired: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "radium_workflow_behaviors_fired_total",
				Help: "Total number of module behaviors consumed, by action type",
			}, []string{"action"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) recordStarted() {
	if m == nil || m.TasksStarted == nil {
		return
	}
	m.TasksStarted.Inc()
	m.TasksRunning.Inc()
}

func (m *Metrics) recordCompleted() {
	if m == nil || m.TasksCompleted == nil {
		return
	}
	m.TasksCompleted.Inc()
	m.TasksRunning.Dec()
}

func (m *Metrics) recordFailed() {
	if m == nil || m.TasksFailed == nil {
		return
	}
	m.TasksFailed.Inc()
	m.TasksRunning.Dec()
}

func (m *Metrics) recordBlocked() {
	if m == nil || m.TasksBlocked == nil {
		return
	}
	m.TasksBlocked.Inc()
}

func (m *Metrics) recordBehavior(action BehaviorActionType) {
	if m == nil || m.BehaviorsFired == nil {
		return
	}
	m.BehaviorsFired.WithLabelValues(string(action)).Inc()
}
