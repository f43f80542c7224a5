package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
)

// Recorder observes classification results.
type Recorder interface {
	ObserveOutcome(outcome certificate.Outcome)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOutcome(certificate.Outcome) {}

// PrometheusRecorder counts outcomes by kind and reason.
type PrometheusRecorder struct {
	outcomes *prometheus.CounterVec
}

// NewPrometheusRecorder registers the outcome counter with registerer.
func NewPrometheusRecorder(registerer prometheus.Registerer) (*PrometheusRecorder, error) {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certanchor",
		Subsystem: "verification",
		Name:      "outcomes_total",
		Help:      "Verification outcomes by certificate kind and reason.",
	}, []string{"kind", "reason"})

	if err := registerer.Register(outcomes); err != nil {
		return nil, err
	}

	// pre-create series so dashboards see zeros
	for _, reason := range certificate.Reasons() {
		outcomes.WithLabelValues("", string(reason))
	}

	return &PrometheusRecorder{outcomes: outcomes}, nil
}

// ObserveOutcome implements Recorder.
func (r *PrometheusRecorder) ObserveOutcome(outcome certificate.Outcome) {
	r.outcomes.WithLabelValues(string(outcome.Kind), string(outcome.Reason)).Inc()
}
