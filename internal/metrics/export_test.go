package metrics

import "github.com/prometheus/client_golang/prometheus"

func DecisionCounter(r *Recorder) *prometheus.CounterVec {
	return r.decisions
}
