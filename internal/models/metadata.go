package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata is an opaque, order-preserving map of string keys to JSON values.
// It carries line customizations and client metadata through the core
// untouched: stored, forwarded, never interpreted.
type Metadata []MetadataEntry

// MetadataEntry is one key-value pair.
type MetadataEntry struct {
	Key   string
	Value json.RawMessage
}

// Get returns the raw value for key and whether it is present.
func (m Metadata) Get(key string) (json.RawMessage, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces the value for key, or appends the pair when absent.
func (m *Metadata) Set(key string, value json.RawMessage) {
	for i, e := range *m {
		if e.Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, MetadataEntry{Key: key, Value: value})
}

// MarshalJSON encodes the metadata as a JSON object in entry order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(e.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(e.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata: expected JSON object, got %v", tok)
	}

	entries := Metadata{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("metadata: expected string key, got %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		entries = append(entries, MetadataEntry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return err
	}
	*m = entries
	return nil
}
