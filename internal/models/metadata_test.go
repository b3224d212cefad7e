package models

import (
	"encoding/json"
	"testing"
)

func TestMetadataRoundTripPreservesOrder(t *testing.T) {
	input := `{"spice":"extra","half":true,"combo":{"side":"fries"},"qty":2}`

	var m Metadata
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	wantKeys := []string{"spice", "half", "combo", "qty"}
	if len(m) != len(wantKeys) {
		t.Fatalf("got %d entries, want %d", len(m), len(wantKeys))
	}
	for i, key := range wantKeys {
		if m[i].Key != key {
			t.Errorf("entry %d key = %q, want %q", i, m[i].Key, key)
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != input {
		t.Errorf("round trip = %s, want %s", out, input)
	}
}

func TestMetadataSetAndGet(t *testing.T) {
	var m Metadata
	m.Set("note", json.RawMessage(`"rare"`))
	m.Set("note", json.RawMessage(`"well done"`))
	m.Set("extra", json.RawMessage(`1`))

	if len(m) != 2 {
		t.Fatalf("got %d entries, want 2", len(m))
	}
	v, ok := m.Get("note")
	if !ok || string(v) != `"well done"` {
		t.Errorf("Get(note) = %s, %v", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
}

func TestMetadataNull(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`null`), &m); err != nil {
		t.Fatalf("Unmarshal null failed: %v", err)
	}
	if m != nil {
		t.Errorf("got %v, want nil", m)
	}
}
