package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/types"
)

// Vector is an ordered, scaled model input.
type Vector struct {
	Names  []string
	Values []float64
}

// Len returns the vector width.
func (v Vector) Len() int { return len(v.Values) }

// Result is the outcome of one Transform call.
type Result struct {
	Vector Vector
	// Sample holds the coerced, imputed and unscaled numeric values by name.
	Sample map[string]float64
	// Compound is the normalized tire hint, empty when none was sent.
	Compound model.TireCompound
	// Imputed names every field filled from reference statistics or the previous sample.
	Imputed map[string]Strategy
}

// Preprocessor validates and scales telemetry using a fixed Reference.
// It holds no mutable state and is safe for concurrent use.
type Preprocessor struct {
	order           []string
	fields          map[string]FieldStats
	categorical     map[string]Categorical
	defaultStrategy Strategy
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithDefaultStrategy sets the strategy for fields whose reference entry names none.
func WithDefaultStrategy(s Strategy) Option {
	return func(p *Preprocessor) {
		if s != "" {
			p.defaultStrategy = s
		}
	}
}

// New builds a Preprocessor from validated reference statistics.
func New(ref Reference, opts ...Option) (*Preprocessor, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	p := &Preprocessor{
		order:           ref.Names(),
		fields:          make(map[string]FieldStats, len(ref.Fields)),
		categorical:     make(map[string]Categorical, len(ref.Categorical)+1),
		defaultStrategy: StrategyMedian,
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, f := range ref.Fields {
		if f.Impute != "" {
			// Validate already accepted the spelling.
			f.Impute, _ = ParseStrategy(string(f.Impute))
		}
		p.fields[f.Name] = f
	}
	p.categorical[CompoundField] = CompoundVocabulary
	for _, c := range ref.Categorical {
		p.categorical[c.Name] = c
	}
	return p, nil
}

// Names returns the default vector order.
func (p *Preprocessor) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

type transformConfig struct {
	previous map[string]float64
}

// TransformOption adjusts a single Transform call.
type TransformOption func(*transformConfig)

// WithPrevious supplies the session's previous unscaled sample for forward fill.
func WithPrevious(prev map[string]float64) TransformOption {
	return func(c *transformConfig) { c.previous = prev }
}

// Transform produces the vector for required, in that order. A nil required
// uses the reference order. Reference statistics are never updated from raw.
func (p *Preprocessor) Transform(raw map[string]any, required []string, opts ...TransformOption) (Result, error) {
	var tc transformConfig
	for _, opt := range opts {
		opt(&tc)
	}
	if len(required) == 0 {
		required = p.order
	}

	res := Result{
		Vector:  Vector{Names: make([]string, 0, len(required)), Values: make([]float64, 0, len(required))},
		Sample:  make(map[string]float64, len(required)),
		Imputed: map[string]Strategy{},
	}

	if hint, ok := raw[CompoundField]; ok && hint != nil {
		canonical, _, err := p.normalizeCategorical(CompoundField, hint)
		if err != nil {
			return Result{}, err
		}
		res.Compound = model.TireCompound(canonical)
	}

	for _, name := range required {
		if c, ok := p.categorical[name]; ok && p.isVectorCategorical(name) {
			v, present := raw[name]
			if !present || v == nil {
				return Result{}, fmt.Errorf("%w: categorical field %s is missing", types.ErrValidation, name)
			}
			_, idx, err := p.normalizeCategorical(c.Name, v)
			if err != nil {
				return Result{}, err
			}
			res.Vector.Names = append(res.Vector.Names, name)
			res.Vector.Values = append(res.Vector.Values, float64(idx))
			continue
		}

		stats, ok := p.fields[name]
		if !ok {
			return Result{}, fmt.Errorf("%w: no reference statistics for %s", types.ErrFeatureMismatch, name)
		}
		v, present, err := Coerce(raw[name])
		if err != nil {
			return Result{}, fmt.Errorf("%w: field %s: %w", types.ErrValidation, name, err)
		}
		if !present {
			strategy := stats.Impute
			if strategy == "" {
				strategy = p.defaultStrategy
			}
			v, err = impute(stats, strategy, tc.previous)
			if err != nil {
				return Result{}, err
			}
			res.Imputed[name] = strategy
		}
		res.Sample[name] = v
		res.Vector.Names = append(res.Vector.Names, name)
		res.Vector.Values = append(res.Vector.Values, scale(v, stats))
	}
	return res, nil
}

func (p *Preprocessor) isVectorCategorical(name string) bool {
	_, numeric := p.fields[name]
	return !numeric
}

func (p *Preprocessor) normalizeCategorical(name string, v any) (string, int, error) {
	s, ok := v.(string)
	if !ok {
		return "", -1, fmt.Errorf("%w: field %s must be a string, got %T", types.ErrValidation, name, v)
	}
	return p.categorical[name].Normalize(s)
}

func impute(stats FieldStats, strategy Strategy, previous map[string]float64) (float64, error) {
	switch strategy {
	case StrategyMean:
		return stats.Mean, nil
	case StrategyMedian:
		return stats.Median, nil
	case StrategyForwardFill:
		if v, ok := previous[stats.Name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("%w: field %s is missing and no previous sample can fill it", types.ErrValidation, stats.Name)
	default:
		return 0, fmt.Errorf("%w: required field %s is missing", types.ErrValidation, stats.Name)
	}
}

func scale(v float64, stats FieldStats) float64 {
	s := stats.Scale
	if s == 0 {
		s = 1
	}
	return (v - stats.Mean) / s
}

// Coerce converts a decoded JSON value to float64. present is false for
// null, NaN and blank strings, which count as missing.
func Coerce(v any) (value float64, present bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true, nil
	case int32:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case uint:
		return float64(x), true, nil
	case uint32:
		return float64(x), true, nil
	case uint64:
		return float64(x), true, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("cannot coerce %q to a number", x.String())
		}
		return finite(f)
	case bool:
		if x {
			return 1, true, nil
		}
		return 0, true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "nan") {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("cannot coerce %q to a number", x)
		}
		return finite(f)
	default:
		return 0, false, fmt.Errorf("cannot coerce %T to a number", v)
	}
}

func finite(f float64) (float64, bool, error) {
	switch {
	case math.IsNaN(f):
		return 0, false, nil
	case math.IsInf(f, 0):
		return 0, false, fmt.Errorf("value is infinite")
	}
	return f, true, nil
}
