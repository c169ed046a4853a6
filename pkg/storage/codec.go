package storage

import "encoding/json"

// EncodeJSON marshals v for storage as a primary record value.
func EncodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeJSON unmarshals a primary record value into v.
func DecodeJSON(b []byte, v any) error {
	return json.Unmarshal(b, v)
}
