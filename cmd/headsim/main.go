// Command headsim runs a head-protocol simulation and writes its trace.
// Usage: headsim <numParties> <linkLatencySeconds> <traceFile> [<submitterNode> <amount> <size> <recipient>]
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/rmourey26/hydra-sim/head"
	"github.com/rmourey26/hydra-sim/internal/trace"
	"github.com/rmourey26/hydra-sim/txmodel"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: headsim <numParties> <linkLatencySeconds> <traceFile> [<submitterNode> <amount> <size> <recipient>]")
		os.Exit(2)
	}

	numParties, err := strconv.Atoi(os.Args[1])
	must(err)
	latency, err := strconv.ParseFloat(os.Args[2], 64)
	must(err)
	traceFile := os.Args[3]

	rec := trace.New("headsim-"+uuid.New().String(), true)
	sim := head.NewSimulation(numParties, latency, rec)

	if len(os.Args) >= 8 {
		submitter, err := strconv.Atoi(os.Args[4])
		must(err)
		amount, err := strconv.ParseInt(os.Args[5], 10, 64)
		must(err)
		size, err := strconv.Atoi(os.Args[6])
		must(err)
		recipient, err := strconv.Atoi(os.Args[7])
		must(err)
		tx := txmodel.NewMockTx(submitter, 0, amount, size, recipient, 0)
		sim.Submit(head.NodeID(submitter), head.New{Tx: tx})
	}

	sim.Run()

	must(rec.WriteToFile(traceFile))
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "headsim:", err)
		os.Exit(1)
	}
}
