package predict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Model maps a scaled input sequence to one scaled output value.
type Model interface {
	Window() int
	Predict(ctx context.Context, seq []float64) (float64, error)
}

// LinearModel is a single dense unit over the input window.
type LinearModel struct {
	Kind       string    `yaml:"kind"`
	WindowSize int       `yaml:"window"`
	Weights    []float64 `yaml:"weights"`
	Bias       float64   `yaml:"bias"`
	Activation string    `yaml:"activation"`
}

func (m *LinearModel) Window() int { return m.WindowSize }

// Predict evaluates the model on the last Window() values of seq.
func (m *LinearModel) Predict(ctx context.Context, seq []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(seq) < m.WindowSize {
		return 0, fmt.Errorf("sequence has %d points, model needs %d", len(seq), m.WindowSize)
	}
	seq = seq[len(seq)-m.WindowSize:]

	out := m.Bias
	for i, w := range m.Weights {
		out += w * seq[i]
	}
	switch m.Activation {
	case "tanh":
		out = math.Tanh(out)
	case "", "identity":
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, errors.New("model produced a non-finite value")
	}
	return out, nil
}

func (m *LinearModel) validate() error {
	if m.Kind != "linear" {
		return fmt.Errorf("unsupported model kind %q", m.Kind)
	}
	if m.WindowSize <= 0 {
		return fmt.Errorf("window must be positive, got %d", m.WindowSize)
	}
	if len(m.Weights) != m.WindowSize {
		return fmt.Errorf("model has %d weights for window %d", len(m.Weights), m.WindowSize)
	}
	switch m.Activation {
	case "", "identity", "tanh":
	default:
		return fmt.Errorf("unsupported activation %q", m.Activation)
	}
	return nil
}

// LoadModel reads a YAML model description from path.
func LoadModel(path string) (*LinearModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m LinearModel
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}
