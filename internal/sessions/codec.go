package sessions

import (
	"encoding/json"
	"time"
)

// JSONCodec encodes session payloads as JSON so rows stay readable from SQL.
// Only string, bool and float64 values survive a round trip unchanged.
type JSONCodec struct{}

type envelope struct {
	Deadline time.Time      `json:"deadline"`
	Values   map[string]any `json:"values"`
}

func (JSONCodec) Encode(deadline time.Time, values map[string]any) ([]byte, error) {
	return json.Marshal(envelope{Deadline: deadline, Values: values})
}

func (JSONCodec) Decode(b []byte) (time.Time, map[string]any, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return time.Time{}, nil, err
	}
	if env.Values == nil {
		env.Values = map[string]any{}
	}
	return env.Deadline, env.Values, nil
}
