package queue

import "encoding/json"

// Serializer is the pluggable (de)serialization contract from spec.md
// §6.3. Queue[T] defaults to jsonSerializer[T] but callers can supply
// their own via WithSerializer.
type Serializer[T any] interface {
	Serialize(v T) ([]byte, error)
	Deserialize(data []byte) (T, error)
}

type jsonSerializer[T any] struct{}

func (jsonSerializer[T]) Serialize(v T) ([]byte, error) { return json.Marshal(v) }

func (jsonSerializer[T]) Deserialize(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
