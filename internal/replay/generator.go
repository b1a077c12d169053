package replay

import (
	"math/rand/v2"
)

// Base values of a synthetic stint.
const (
	degradationPerLap = 0.12
	baseTrackTemp     = 42.0
	baseAirTemp       = 24.0
)

// Generator produces deterministic telemetry for one car.
type Generator struct {
	rng    *rand.Rand
	pitLap int
}

// NewGenerator returns a generator seeded for one vehicle.
func NewGenerator(seed uint64, vehicleID, pitLap int) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewPCG(seed, uint64(vehicleID))),
		pitLap: pitLap,
	}
}

// Laps generates n consecutive laps starting at lap 1. The car runs MEDIUM
// tires until the pit lap and HARD afterwards.
func (g *Generator) Laps(n int) []Lap {
	laps := make([]Lap, 0, n)
	stintStart := 1
	for i := 1; i <= n; i++ {
		compound := "MEDIUM"
		if g.pitLap > 0 && i >= g.pitLap {
			compound = "HARD"
			if i == g.pitLap {
				stintStart = i
			}
		}
		age := float64(i - stintStart)
		laps = append(laps, Lap{
			Number:    i,
			Compound:  compound,
			Telemetry: g.telemetry(age),
		})
	}
	return laps
}

func (g *Generator) telemetry(tireAge float64) map[string]any {
	jitter := func(scale float64) float64 { return (g.rng.Float64()*2 - 1) * scale }
	lapDelta := tireAge*degradationPerLap + jitter(0.2)
	return map[string]any{
		"max_speed":            330 + jitter(8),
		"avg_speed":            212 + jitter(5) - tireAge*0.3,
		"std_speed":            40 + jitter(3),
		"avg_throttle":         0.72 + jitter(0.04),
		"brake_front_freq":     10 + g.rng.IntN(4),
		"brake_rear_freq":      8 + g.rng.IntN(3),
		"dominant_gear":        6,
		"avg_steer_angle":      5 + jitter(0.5),
		"avg_long_accel":       2 + jitter(0.2),
		"avg_lat_accel":        3 + jitter(0.3),
		"avg_rpm":              11000 + jitter(300),
		"rolling_std_lap_time": 0.4 + jitter(0.1),
		"lap_time_delta":       lapDelta,
		"tire_wear_high":       min(1, 0.1+tireAge*0.04),
		"air_temp":             baseAirTemp + jitter(0.5),
		"track_temp":           baseTrackTemp + jitter(1),
		"humidity":             55 + jitter(3),
		"pressure":             1013 + jitter(1),
		"wind_speed":           7 + jitter(2),
		"wind_direction":       180 + jitter(20),
		"rain":                 0.0,
	}
}
