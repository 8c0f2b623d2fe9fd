package api

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// metrics serves GET /metrics — the monitor counters and connection state
// in Prometheus text exposition format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := h.bridge.Metrics()
	hs := h.bridge.Health()
	qs := h.bridge.QueueStatus()

	attached := 0.0
	if hs.Attached {
		attached = 1
	}

	fams := []*dto.MetricFamily{
		counterFamily("bridge_requests_total",
			"Settled operations by outcome.",
			labeledCounter(float64(snap.SuccessCount), "outcome", "success"),
			labeledCounter(float64(snap.ErrorCount), "outcome", "error"),
		),
		gaugeFamily("bridge_worker_attached",
			"Whether a worker is currently attached (0 or 1).", attached),
		gaugeFamily("bridge_pending_requests",
			"Operations in flight awaiting a result.", float64(hs.PendingCount)),
		gaugeFamily("bridge_queue_depth",
			"Operations queued while no worker is attached.", float64(qs.Length)),
		gaugeFamily("bridge_response_ms_avg",
			"Mean response time over the recent sample window.", snap.AvgResponseMs),
		counterFamily("bridge_reconnects_total",
			"Successful worker reattachments.",
			labeledCounter(float64(hs.ReconnectCount))),
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range fams {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

// --- dto builders -----------------------------------------------------------

func counterFamily(name, help string, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strp(name),
		Help:   strp(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: metrics,
	}
}

func gaugeFamily(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: strp(name),
		Help: strp(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: f64p(value)}},
		},
	}
}

// labeledCounter builds one counter sample with optional name/value label
// pairs.
func labeledCounter(value float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Counter: &dto.Counter{Value: f64p(value)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  strp(labels[i]),
			Value: strp(labels[i+1]),
		})
	}
	return m
}

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }
