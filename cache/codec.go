package cache

import (
	"github.com/vmihailenco/msgpack/v5"
)

// encode serializes a value to msgpack. Functions, channels and complex
// numbers are not serializable and yield an ErrSerialization-marked error.
func encode(val any) ([]byte, error) {
	data, err := msgpack.Marshal(val)
	if err != nil {
		return nil, serializationError(err)
	}
	return data, nil
}

// decode deserializes a msgpack payload into out.
func decode(data []byte, out any) error {
	if err := msgpack.Unmarshal(data, out); err != nil {
		return serializationError(err)
	}
	return nil
}
