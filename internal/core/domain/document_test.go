package domain

import "testing"

func TestCanTransitionForwardChain(t *testing.T) {
	chain := []DocumentStatus{StatusUploaded, StatusPaymentPending, StatusPaid, StatusAnalyzing, StatusAnalyzed}
	for i := 0; i < len(chain)-1; i++ {
		if !CanTransition(chain[i], chain[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", chain[i], chain[i+1])
		}
	}
}

func TestCanTransitionRejectsSkipsAndBackwards(t *testing.T) {
	rejected := [][2]DocumentStatus{
		{StatusUploaded, StatusPaid},
		{StatusPaymentPending, StatusAnalyzing},
		{StatusPaid, StatusAnalyzed},
		{StatusAnalyzed, StatusPaid},
		{StatusAnalyzing, StatusPaid},
		{StatusPaid, StatusPaymentPending},
		{StatusFailed, StatusPaid},
		{StatusAnalyzed, StatusFailed},
		{StatusUploaded, DocumentStatus("bogus")},
	}
	for _, pair := range rejected {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestCanTransitionIntoFailedFromNonTerminal(t *testing.T) {
	for _, from := range []DocumentStatus{StatusUploaded, StatusPaymentPending, StatusPaid, StatusAnalyzing} {
		if !CanTransition(from, StatusFailed) {
			t.Fatalf("expected %s -> failed to be allowed", from)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !StatusAnalyzed.Terminal() || !StatusFailed.Terminal() {
		t.Fatalf("analyzed and failed must be terminal")
	}
	if StatusPaid.Terminal() || StatusAnalyzing.Terminal() {
		t.Fatalf("paid and analyzing must not be terminal")
	}
}
