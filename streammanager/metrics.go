package streammanager

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anyproto/any-stream/streamplan"
)

type planMetrics struct {
	plansStarted      prometheus.Counter
	plansSucceeded    prometheus.Counter
	plansFailed       prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsFailed    prometheus.Counter
	bytesTransferred  prometheus.Counter
}

func registerMetrics(reg *prometheus.Registry) *planMetrics {
	m := &planMetrics{
		plansStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stream",
			Subsystem: "plans",
			Name:      "started",
			Help:      "registered plans count",
		}),
		plansSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stream",
			Subsystem: "plans",
			Name:      "succeeded",
			Help:      "plans resolved successfully",
		}),
		plansFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stream",
			Subsystem: "plans",
			Name:      "failed",
			Help:      "plans resolved with failure",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stream",
			Subsystem: "sessions",
			Name:      "completed",
			Help:      "sessions finished completed",
		}),
		sessionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stream",
			Subsystem: "sessions",
			Name:      "failed",
			Help:      "sessions finished failed",
		}),
		bytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stream",
			Subsystem: "sessions",
			Name:      "bytes_transferred",
			Help:      "total bytes transferred by resolved plans",
		}),
	}
	reg.MustRegister(
		m.plansStarted,
		m.plansSucceeded,
		m.plansFailed,
		m.sessionsCompleted,
		m.sessionsFailed,
		m.bytesTransferred,
	)
	return m
}

func (m *planMetrics) observe(res *streamplan.StreamResult) {
	m.plansStarted.Inc()
	res.OnComplete(func(st streamplan.StreamState, err error) {
		if err != nil {
			m.plansFailed.Inc()
		} else {
			m.plansSucceeded.Inc()
		}
		for _, si := range st.Sessions {
			if si.Failed() {
				m.sessionsFailed.Inc()
			} else {
				m.sessionsCompleted.Inc()
			}
			m.bytesTransferred.Add(float64(si.BytesTransferred))
		}
	})
}
