package replay

import (
	"fmt"
	"slices"
)

// verifySession compares what the service recorded and narrated with what was sent.
func verifySession(cfg *Config, sent []Lap, recorded []int, rep SessionReport) []string {
	var problems []string

	want := make([]int, 0, len(sent))
	for _, l := range sent {
		want = append(want, l.Number)
	}
	if rep.Failed == 0 && !slices.Equal(recorded, want) {
		problems = append(problems, fmt.Sprintf("recorded laps %v, sent %v", recorded, want))
	}
	if !slices.IsSorted(recorded) {
		problems = append(problems, "history is not in submission order")
	}

	wantStrategy := "MEDIUM"
	var wantPits []int
	switch {
	case cfg.PitLap == 1:
		wantStrategy = "HARD"
	case cfg.PitLap > 1 && cfg.PitLap <= cfg.Laps:
		wantStrategy = "MEDIUM → HARD"
		wantPits = []int{cfg.PitLap}
	}
	if rep.Failed == 0 && len(sent) > 0 {
		if rep.TireStrategy != wantStrategy {
			problems = append(problems, fmt.Sprintf("tire strategy %q, want %q", rep.TireStrategy, wantStrategy))
		}
		if !slices.Equal(rep.PitStopLaps, wantPits) {
			problems = append(problems, fmt.Sprintf("pit stops on laps %v, want %v", rep.PitStopLaps, wantPits))
		}
	}
	return problems
}
