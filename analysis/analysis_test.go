package analysis

import (
	"testing"

	"github.com/rmourey26/hydra-sim/internal/mplex"
	"github.com/rmourey26/hydra-sim/internal/trace"
	"github.com/rmourey26/hydra-sim/tail"
)

func TestFoldCountsAckTxAndUsage(t *testing.T) {
	rec := trace.New("fold-test", true)
	rec.Add("client-1-server", 1.0, mplex.KindMPRecvTrailing, tail.AckTx{})
	rec.Add("server-client-1", 1.0, mplex.KindMPSendLeading, 128)
	rec.Add("server-client-1", 1.1, mplex.KindMPRecvLeading, 64)
	rec.Add("client-1", 2.0, "WakeUp", 5)

	m := Fold(rec)
	if m.ConfirmedTxs != 1 {
		t.Fatalf("expected 1 confirmed tx, got %d", m.ConfirmedTxs)
	}
	if m.WriteUsage != 128 {
		t.Fatalf("expected write usage 128, got %d", m.WriteUsage)
	}
	if m.ReadUsage != 64 {
		t.Fatalf("expected read usage 64, got %d", m.ReadUsage)
	}
	if m.LastSlot != 5 {
		t.Fatalf("expected last slot 5, got %d", m.LastSlot)
	}
	if m.LastTxTime != 1.0 {
		t.Fatalf("expected last tx time 1.0, got %v", m.LastTxTime)
	}

	rep := Summarize(m, 0.5)
	if rep.MaxThroughput <= 0 {
		t.Fatalf("expected positive max throughput, got %v", rep.MaxThroughput)
	}
	if rep.ActualThroughput <= 0 {
		t.Fatalf("expected positive actual throughput, got %v", rep.ActualThroughput)
	}
	if rep.WriteKbps != 128*8/1024/(5*0.5) {
		t.Fatalf("unexpected write kbps: %v", rep.WriteKbps)
	}
}
