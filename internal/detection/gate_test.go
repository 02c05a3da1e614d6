package detection

import "testing"

func TestCoverageGateEvaluate(t *testing.T) {
	gate := CoverageGate{Threshold: 0.80}

	tests := []struct {
		name        string
		prevActive  int
		extracted   int
		wantTrusted bool
		wantRatio   float64
	}{
		{name: "just below threshold", prevActive: 100, extracted: 79, wantTrusted: false, wantRatio: 0.79},
		{name: "exactly at threshold", prevActive: 100, extracted: 80, wantTrusted: true, wantRatio: 0.80},
		{name: "full coverage", prevActive: 100, extracted: 100, wantTrusted: true, wantRatio: 1.0},
		{name: "audience grew past baseline", prevActive: 100, extracted: 150, wantTrusted: true, wantRatio: 1.5},
		{name: "first run always trusted", prevActive: 0, extracted: 5, wantTrusted: true, wantRatio: 1.0},
		{name: "severe partial scrape", prevActive: 1000, extracted: 100, wantTrusted: false, wantRatio: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := gate.Evaluate(tt.prevActive, tt.extracted)
			if decision.Trusted != tt.wantTrusted {
				t.Errorf("Evaluate(%d, %d).Trusted = %v, want %v",
					tt.prevActive, tt.extracted, decision.Trusted, tt.wantTrusted)
			}
			if decision.Ratio != tt.wantRatio {
				t.Errorf("Evaluate(%d, %d).Ratio = %v, want %v",
					tt.prevActive, tt.extracted, decision.Ratio, tt.wantRatio)
			}
		})
	}
}
