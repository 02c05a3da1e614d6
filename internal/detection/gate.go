package detection

// CoverageGate decides whether a completed extraction captured enough of the
// previous snapshot to be trusted for diffing. A partial scrape looks exactly
// like a mass unfollow; the gate is what keeps that from poisoning the log.
type CoverageGate struct {
	Threshold float64
}

// GateDecision is the outcome of evaluating one run against the gate.
type GateDecision struct {
	Trusted bool
	Ratio   float64
}

// Evaluate computes coverage as extracted over the previous active count and
// compares it against the threshold. The first run for a target has no baseline
// and is always trusted. Ratios above 1.0 are normal (the audience grew) and
// pass trivially.
func (g CoverageGate) Evaluate(prevActive, extracted int) GateDecision {
	if prevActive <= 0 {
		return GateDecision{Trusted: true, Ratio: 1.0}
	}

	ratio := float64(extracted) / float64(prevActive)
	return GateDecision{
		Trusted: ratio >= g.Threshold,
		Ratio:   ratio,
	}
}
