package inference

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/types"
)

// Artifact file names inside the model directory.
const (
	ScalerFile      = "scaler.json"
	LapTimeFile     = "lap_time_model.json"
	PitImminentFile = "pit_imminent_model.json"
	TireFile        = "tire_compound_model.json"
)

const schemaBaseURL = "https://pitwall.dev/schemas/"

//go:embed schemas/*.json
var schemaFS embed.FS

// Node is one split or leaf of a decision tree. Left == -1 marks a leaf.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// TreeSpec is a serialized decision tree.
type TreeSpec struct {
	Nodes []Node `json:"nodes"`
}

// ModelArtifact is the on-disk form of one trained ensemble.
type ModelArtifact struct {
	Version       int        `json:"version"`
	Task          string     `json:"task"`
	Kind          string     `json:"kind"`
	FeatureNames  []string   `json:"feature_names"`
	Classes       []string   `json:"classes,omitempty"`
	PositiveClass string     `json:"positive_class,omitempty"`
	Trees         []TreeSpec `json:"trees"`
}

// ScalerArtifact is the on-disk form of the fitted reference statistics.
type ScalerArtifact struct {
	Version     int                    `json:"version"`
	Features    []features.FieldStats  `json:"features"`
	Categorical []features.Categorical `json:"categorical,omitempty"`
}

// Reference converts the artifact into preprocessing statistics.
func (s ScalerArtifact) Reference() features.Reference {
	return features.Reference{Fields: s.Features, Categorical: s.Categorical}
}

type schemas struct {
	model  *jsonschema.Schema
	scaler *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	model, err := compileSchema("model.schema.json")
	if err != nil {
		return nil, err
	}
	scaler, err := compileSchema("scaler.schema.json")
	if err != nil {
		return nil, err
	}
	return &schemas{model: model, scaler: scaler}, nil
}

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	url := schemaBaseURL + name
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// readValidated reads path, validates it against schema and decodes it into out.
func readValidated(path string, schema *jsonschema.Schema, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", types.ErrModelUnavailable, filepath.Base(path), err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: parse %s: %w", types.ErrModelUnavailable, filepath.Base(path), err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("%w: %s does not match schema: %w", types.ErrModelUnavailable, filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", types.ErrModelUnavailable, filepath.Base(path), err)
	}
	return nil
}

func loadModel(path string, s *schemas) (*ModelArtifact, error) {
	var a ModelArtifact
	if err := readValidated(path, s.model, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func loadScaler(path string, s *schemas) (*ScalerArtifact, error) {
	var a ScalerArtifact
	if err := readValidated(path, s.scaler, &a); err != nil {
		return nil, err
	}
	if err := a.Reference().Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &a, nil
}
