// Package analysis folds a recorded trace into throughput and network-usage
// metrics. The fold is a single pass over trace.Recorder.Events; nothing
// here re-runs the simulation.
package analysis

import (
	"strings"

	"github.com/rmourey26/hydra-sim/internal/mplex"
	"github.com/rmourey26/hydra-sim/internal/trace"
	"github.com/rmourey26/hydra-sim/tail"
)

// Metrics is the folded state of a run: per-run counters plus the
// bookkeeping needed to report throughput afterward.
type Metrics struct {
	ConfirmedTxs int
	WriteUsage   int64 // bytes written by the server's multiplexers
	ReadUsage    int64 // bytes read by the server's multiplexers
	LastTxTime   float64
	LastSlot     int
}

// clientThreadPrefix and serverThreadPrefix distinguish a client-owned
// trace thread from a server-owned one, matching the labelling
// tail.Simulation gives its multiplexer endpoints and clients.
const (
	clientThreadPrefix = "client-"
	serverThreadPrefix = "server-"
)

// Fold walks rec.Events once, accumulating Metrics: confirmed txs are
// counted off AckTx arrivals seen on a client-side multiplexer, and byte
// usage is counted off the server side's leading send/recv trace events.
func Fold(rec *trace.Recorder) Metrics {
	var m Metrics
	for _, ev := range rec.Events {
		switch ev.Kind {
		case mplex.KindMPRecvTrailing:
			if !strings.HasPrefix(ev.Thread, clientThreadPrefix) {
				continue
			}
			if _, ok := ev.Data.(tail.AckTx); ok {
				m.ConfirmedTxs++
				if ev.Time > m.LastTxTime {
					m.LastTxTime = ev.Time
				}
			}
		case mplex.KindMPRecvLeading:
			if strings.HasPrefix(ev.Thread, serverThreadPrefix) {
				m.ReadUsage += int64(sizeOf(ev.Data))
			}
		case mplex.KindMPSendLeading:
			if strings.HasPrefix(ev.Thread, serverThreadPrefix) {
				m.WriteUsage += int64(sizeOf(ev.Data))
			}
		case "WakeUp":
			if slot, ok := ev.Data.(int); ok && slot > m.LastSlot {
				m.LastSlot = slot
			}
		}
	}
	return m
}

func sizeOf(data any) int {
	switch v := data.(type) {
	case int:
		return v
	default:
		return 0
	}
}

// Report is the human-facing summary derived from Metrics.
type Report struct {
	MaxThroughput    float64 // confirmed / (last_slot * slot_length)
	ActualThroughput float64 // confirmed / (1 + last_tx_time)
	ReadKbps         float64
	WriteKbps        float64
}

// Summarize computes Report from Metrics given the run's slot length in
// seconds. Read/write usage is averaged over last_slot * slot_length
// simulated seconds and stays 0 when that duration is 0.
func Summarize(m Metrics, slotLength float64) Report {
	var r Report
	if m.LastSlot > 0 && slotLength > 0 {
		duration := float64(m.LastSlot) * slotLength
		r.MaxThroughput = float64(m.ConfirmedTxs) / duration
		r.ReadKbps = float64(m.ReadUsage) * 8 / 1024 / duration
		r.WriteKbps = float64(m.WriteUsage) * 8 / 1024 / duration
	}
	r.ActualThroughput = float64(m.ConfirmedTxs) / (1 + m.LastTxTime)
	return r
}
