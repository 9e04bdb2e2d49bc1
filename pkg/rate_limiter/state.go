package rate_limiter

import (
	"encoding/json"

	"github/martinmaurice/limitd/pkg/enum"
)

// Per-key state is persisted as a tagged envelope so that a key written by
// one algorithm is never misread by another: a tag mismatch is treated as
// no prior state and the key starts over.
type stateEnvelope struct {
	Algorithm enum.Algorithm  `json:"algorithm"`
	State     json.RawMessage `json:"state"`
}

type tokenBucketState struct {
	Tokens     float64 `json:"tokens"`
	LastRefill float64 `json:"last_refill"`
}

type slidingWindowState struct {
	Requests []float64 `json:"requests"`
}

type fixedWindowState struct {
	Count       int     `json:"count"`
	WindowStart float64 `json:"window_start"`
}

type leakyBucketState struct {
	Volume   float64 `json:"volume"`
	LastLeak float64 `json:"last_leak"`
}

func encodeState(algorithm enum.Algorithm, state any) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stateEnvelope{Algorithm: algorithm, State: raw})
}

// decodeState unmarshals a stored envelope into the given state value.
// It reports false when raw is nil or was written by another algorithm.
func decodeState(raw []byte, algorithm enum.Algorithm, state any) (bool, error) {
	if raw == nil {
		return false, nil
	}
	var env stateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, err
	}
	if env.Algorithm != algorithm {
		return false, nil
	}
	if err := json.Unmarshal(env.State, state); err != nil {
		return false, err
	}
	return true, nil
}
