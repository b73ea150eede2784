package types

import (
	"reflect"
	"testing"
)

func TestClone_DeepCopiesNestedMaps(t *testing.T) {
	src := ConfigSnapshot{
		"instrumentationKey": "abc",
		"extensionConfig": ConfigSnapshot{
			"cfgsync": ConfigSnapshot{"receiveChanges": true},
		},
		"samplers": []any{ConfigSnapshot{"rate": 50}},
	}

	got := Clone(src)
	if !reflect.DeepEqual(got, src) {
		t.Fatalf("Clone: got %v, want %v", got, src)
	}

	// Mutating the clone must not leak into the source.
	got["extensionConfig"].(ConfigSnapshot)["cfgsync"].(ConfigSnapshot)["receiveChanges"] = false
	got["samplers"].([]any)[0].(ConfigSnapshot)["rate"] = 1
	if !src["extensionConfig"].(ConfigSnapshot)["cfgsync"].(ConfigSnapshot)["receiveChanges"].(bool) {
		t.Error("Clone shares nested map with source")
	}
	if src["samplers"].([]any)[0].(ConfigSnapshot)["rate"] != 50 {
		t.Error("Clone shares nested slice with source")
	}
}

func TestClone_Nil(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		dst  ConfigSnapshot
		src  ConfigSnapshot
		want ConfigSnapshot
	}{
		{
			name: "scalar replaces scalar",
			dst:  ConfigSnapshot{"sampleRate": 50},
			src:  ConfigSnapshot{"sampleRate": 10},
			want: ConfigSnapshot{"sampleRate": 10},
		},
		{
			name: "maps merge recursively",
			dst:  ConfigSnapshot{"ext": ConfigSnapshot{"a": 1, "b": 2}},
			src:  ConfigSnapshot{"ext": ConfigSnapshot{"b": 3, "c": 4}},
			want: ConfigSnapshot{"ext": ConfigSnapshot{"a": 1, "b": 3, "c": 4}},
		},
		{
			name: "map replaces scalar",
			dst:  ConfigSnapshot{"x": "flat"},
			src:  ConfigSnapshot{"x": ConfigSnapshot{"nested": true}},
			want: ConfigSnapshot{"x": ConfigSnapshot{"nested": true}},
		},
		{
			name: "nil dst copies src",
			dst:  nil,
			src:  ConfigSnapshot{"k": "v"},
			want: ConfigSnapshot{"k": "v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.dst, tt.src)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	dst := ConfigSnapshot{"ext": ConfigSnapshot{"a": 1}}
	src := ConfigSnapshot{"ext": ConfigSnapshot{"b": 2}}
	_ = Merge(dst, src)
	if _, ok := dst["ext"].(ConfigSnapshot)["b"]; ok {
		t.Error("Merge mutated dst")
	}
}

func TestParseDocument(t *testing.T) {
	cfg, err := ParseDocument([]byte(`{"sampleRate":10,"nested":{"k":"v"}}`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if cfg["sampleRate"].(float64) != 10 {
		t.Errorf("sampleRate = %v, want 10", cfg["sampleRate"])
	}
	if cfg["nested"].(ConfigSnapshot)["k"] != "v" {
		t.Errorf("nested.k = %v, want v", cfg["nested"])
	}

	if _, err := ParseDocument([]byte(`{not json`)); err == nil {
		t.Error("malformed document should error")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{
		Ns: "cfgsync-1",
		Event: OutboundEvent{
			Name:   "cfgsync",
			Detail: Detail{Cfg: ConfigSnapshot{"sampleRate": float64(50)}},
		},
	}
	data, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Errorf("round trip = %+v, want %+v", got, f)
	}
}
