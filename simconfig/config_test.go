package simconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndRegionTable(t *testing.T) {
	doc := `
prepare:
  numberOfClients: 3
  duration: 100
  clientRegion: eu-west
  client:
    onlineLikelihood: 0.4
    submitLikelihood: 0.2
run:
  slotLength: 1.0
  settlementDelay: 5
  paymentWindow:
    lower: -100
    upper: 100
  server:
    region: us-east
    writeCapacity: 1.0e6
    readCapacity: 1.0e6
    concurrency: 4
    outCapBytes: 1000000
    inCapBytes: 1000000
regionLinks:
  - a: us-east
    b: us-west
    latency: 0.06
  - a: us-west
    b: eu-west
    latency: 0.08
`
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Prepare.NumberOfClients != 3 {
		t.Fatalf("expected 3 clients, got %d", cfg.Prepare.NumberOfClients)
	}
	if cfg.Run.PaymentWindow == nil || cfg.Run.PaymentWindow.Lower != -100 {
		t.Fatalf("expected payment window lower=-100, got %+v", cfg.Run.PaymentWindow)
	}

	rt := cfg.RegionTable()
	latency, err := rt.Latency("us-east", "eu-west")
	if err != nil {
		t.Fatalf("Latency: %v", err)
	}
	want := 0.06 + 0.08
	if latency < want-1e-9 || latency > want+1e-9 {
		t.Fatalf("expected transit latency %v, got %v", want, latency)
	}

	csLatency, err := cfg.ClientServerLatency()
	if err != nil {
		t.Fatalf("ClientServerLatency: %v", err)
	}
	if csLatency < want-1e-9 || csLatency > want+1e-9 {
		t.Fatalf("expected client-server latency %v, got %v", want, csLatency)
	}
}
