package api

import (
	"encoding/json"
	"fmt"
)

// Transformer кодирует вход процедуры и декодирует ее результат.
type Transformer interface {
	Serialize(v any) (json.RawMessage, error)

	Deserialize(data json.RawMessage, out any) error
}

// SuperJSON - формат {"json": value, "meta": ...}, которого ждет сервер процедур.
type SuperJSON struct{}

type superJSONEnvelope struct {
	JSON json.RawMessage `json:"json"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// Serialize оборачивает значение в {"json": value}.
func (SuperJSON) Serialize(v any) (json.RawMessage, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("superjson serialize: %w", err)
	}
	return json.Marshal(superJSONEnvelope{JSON: inner})
}

// Deserialize разворачивает {"json": value}. Данные без обертки декодируются как есть.
func (SuperJSON) Deserialize(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}

	var envelope superJSONEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.JSON) > 0 {
		data = envelope.JSON
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("superjson deserialize: %w", err)
	}
	return nil
}

// Plain передает JSON без обертки.
type Plain struct{}

// Serialize кодирует значение в JSON.
func (Plain) Serialize(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

// Deserialize декодирует JSON в out.
func (Plain) Deserialize(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
