package analysis

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// PrometheusSnapshot builds a standalone prometheus.Registry populated with
// the folded Metrics and Report, for runs that want to scrape results
// offline rather than parse the plain struct names. This is additive: every
// value it exposes is also available directly on Metrics/Report.
func PrometheusSnapshot(expName string, m Metrics, rep Report) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"run": expName}

	confirmed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_sim_confirmed_txs", Help: "Transactions acknowledged to a client during this run.", ConstLabels: constLabels,
	})
	confirmed.Set(float64(m.ConfirmedTxs))

	readUsage := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_sim_read_usage_bytes", Help: "Bytes read by the tail server's multiplexers.", ConstLabels: constLabels,
	})
	readUsage.Set(float64(m.ReadUsage))

	writeUsage := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_sim_write_usage_bytes", Help: "Bytes written by the tail server's multiplexers.", ConstLabels: constLabels,
	})
	writeUsage.Set(float64(m.WriteUsage))

	maxThroughput := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_sim_max_throughput_tx_per_sec", Help: "confirmed / (last_slot * slot_length).", ConstLabels: constLabels,
	})
	maxThroughput.Set(rep.MaxThroughput)

	actualThroughput := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_sim_actual_throughput_tx_per_sec", Help: "confirmed / (1 + last_tx_time).", ConstLabels: constLabels,
	})
	actualThroughput.Set(rep.ActualThroughput)

	readKbps := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_sim_read_kbps", Help: "Read usage in kbit/s.", ConstLabels: constLabels,
	})
	readKbps.Set(rep.ReadKbps)

	writeKbps := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hydra_sim_write_kbps", Help: "Write usage in kbit/s.", ConstLabels: constLabels,
	})
	writeKbps.Set(rep.WriteKbps)

	reg.MustRegister(confirmed, readUsage, writeUsage, maxThroughput, actualThroughput, readKbps, writeKbps)
	return reg
}

// WritePrometheusText gathers reg and writes it to w in the Prometheus text
// exposition format, for runs that want to save a scrape-able snapshot
// alongside the trace file rather than stand up a /metrics endpoint.
func WritePrometheusText(reg *prometheus.Registry, w io.Writer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
