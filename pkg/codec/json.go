// Package codec provides the JSON encoding and decoding used on the wire.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ContentTypeJSON is the Content-Type written with every JSON response.
const ContentTypeJSON = "application/json; charset=utf-8"

var (
	// ErrEmptyBody is returned when a JSON document was expected but the input is empty.
	ErrEmptyBody = errors.New("empty body")

	// ErrNotObjectOrArray is returned by ParseStrict when the top-level value is a primitive.
	ErrNotObjectOrArray = errors.New("top-level JSON value must be an object or an array")

	// ErrTrailingData is returned when more than one JSON value is present.
	ErrTrailingData = errors.New("unexpected data after top-level JSON value")
)

// JSONCodec encodes response values as JSON.
type JSONCodec struct {
	// EscapeHTML controls whether <, > and & are escaped inside JSON strings.
	EscapeHTML bool
}

// NewJSONCodec creates a JSONCodec with HTML escaping enabled.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{EscapeHTML: true}
}

// Marshal encodes v without the trailing newline added by json.Encoder.
func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(c.EscapeHTML)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("json encoding failed: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Encode writes v as the response body with the given status code.
// The value is marshaled before any header is written, so an encoding error
// leaves the response untouched and the caller can still report it.
func (c *JSONCodec) Encode(w http.ResponseWriter, status int, v any) error {
	body, err := c.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// ParseStrict decodes a single JSON document whose top level is an object or an array.
// Numbers are decoded as float64, matching how the value is echoed back.
func ParseStrict(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}

	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	default:
		return nil, ErrNotObjectOrArray
	}
}

// FromValue converts a generic decoded value (as produced by ParseStrict or the
// form parser) into a typed struct by round-tripping it through JSON.
func FromValue[T any](v any) (T, error) {
	var result T
	b, err := json.Marshal(v)
	if err != nil {
		return result, fmt.Errorf("encode value: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("decode value: %w", err)
	}
	return result, nil
}
