package handler

import (
	"bytes"
	"encoding/json"
)

// nullable distinguishes an absent JSON field from an explicit null.
// Set is false when the key was missing from the payload.
type nullable[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (n *nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Null = true
		return nil
	}
	return json.Unmarshal(data, &n.Value)
}
