// Command tailsim runs a tail-protocol simulation from a YAML config and
// writes its trace.
// Usage: tailsim <configFile> <traceFile>
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/rmourey26/hydra-sim/analysis"
	"github.com/rmourey26/hydra-sim/internal/trace"
	"github.com/rmourey26/hydra-sim/simconfig"
	"github.com/rmourey26/hydra-sim/tail"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: tailsim <configFile> <traceFile>")
		os.Exit(2)
	}
	configFile := os.Args[1]
	traceFile := os.Args[2]

	cfg, err := simconfig.Load(configFile)
	must(err)

	latency, err := cfg.ClientServerLatency()
	must(err)

	expName := "tailsim-" + uuid.New().String()
	rec := trace.New(expName, true)

	var window *tail.PaymentWindow
	if cfg.Run.PaymentWindow != nil {
		window = &tail.PaymentWindow{
			Lower: cfg.Run.PaymentWindow.Lower,
			Upper: cfg.Run.PaymentWindow.Upper,
		}
	}

	serverOpts := tail.ServerOptions{
		Concurrency: cfg.Run.Server.Concurrency,
		WriteCap:    cfg.Run.Server.WriteCapacity,
		ReadCap:     cfg.Run.Server.ReadCapacity,
		OutCapBytes: cfg.Run.Server.OutCapBytes,
		InCapBytes:  cfg.Run.Server.InCapBytes,
	}
	clientOpts := tail.ClientOptions{
		WriteCap:        cfg.Run.Server.WriteCapacity,
		ReadCap:         cfg.Run.Server.ReadCapacity,
		OutCapBytes:     1000,
		InCapBytes:      1000,
		InitialBalance:  0,
		Window:          window,
		SettlementDelay: cfg.Run.SettlementDelay,
		SlotLength:      cfg.Run.SlotLength,
	}

	numClients := cfg.Prepare.NumberOfClients
	tapes := make(map[tail.ClientID][]tail.Event, numClients)
	for i := 1; i <= numClients; i++ {
		id := tail.ClientID(i)
		rng := tail.NewClientRNG(id)
		tapes[id] = tail.GenerateTape(id, rng, tail.TapeOptions{
			NumClients:       numClients,
			Slots:            cfg.Prepare.Duration,
			OnlineLikelihood: cfg.Prepare.Client.OnlineLikelihood,
			SubmitLikelihood: cfg.Prepare.Client.SubmitLikelihood,
		})
	}

	sim := tail.NewSimulation(numClients, latency, serverOpts, clientOpts, tapes, rec)
	sim.Run()

	m := analysis.Fold(rec)
	report := analysis.Summarize(m, cfg.Run.SlotLength)
	fmt.Printf("confirmed=%d maxThroughput=%.2f tx/s actualThroughput=%.2f tx/s readKbps=%.2f writeKbps=%.2f\n",
		m.ConfirmedTxs, report.MaxThroughput, report.ActualThroughput, report.ReadKbps, report.WriteKbps)

	metricsFile, err := os.Create(traceFile + ".prom")
	must(err)
	snapshot := analysis.PrometheusSnapshot(expName, m, report)
	must(analysis.WritePrometheusText(snapshot, metricsFile))
	must(metricsFile.Close())

	must(rec.WriteToFile(traceFile))
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "tailsim:", err)
		os.Exit(1)
	}
}
