package ml

import (
	"encoding/json"
	"fmt"
)

const (
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
	KindRidge            = "ridge"
)

type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// Marshal encodes a fitted model together with its kind.
func Marshal(m Regressor) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return json.Marshal(envelope{Kind: m.Kind(), Model: body})
}

// Unmarshal decodes an artifact produced by Marshal.
func Unmarshal(data []byte) (Regressor, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}

	var m Regressor
	switch env.Kind {
	case KindRandomForest:
		m = &RandomForest{}
	case KindGradientBoosting:
		m = &GradientBoosting{}
	case KindRidge:
		m = &Ridge{}
	default:
		return nil, fmt.Errorf("unknown model kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Model, m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return m, nil
}
