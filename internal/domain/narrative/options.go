package narrative

// Option configures an Extractor.
type Option func(*Extractor)

// WithPaceWindow sets how many prior laps feed the rolling lap-time average.
func WithPaceWindow(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.paceWindow = n
		}
	}
}

// WithPaceThreshold sets the deviation threshold as max(multiplier*std, minDelta).
func WithPaceThreshold(multiplier, minDelta float64) Option {
	return func(e *Extractor) {
		if multiplier >= 0 {
			e.paceStdMultiplier = multiplier
		}
		if minDelta >= 0 {
			e.paceMinDelta = minDelta
		}
	}
}

// WithLowConfidence enables low-confidence events below threshold. Zero disables them.
func WithLowConfidence(threshold float64) Option {
	return func(e *Extractor) {
		e.lowConfidence = threshold
	}
}

// WithPitWindow enables pit-window events above probability. Zero disables them.
func WithPitWindow(probability float64) Option {
	return func(e *Extractor) {
		e.pitWindowProbability = probability
	}
}
