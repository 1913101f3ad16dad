package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMapTrimsEntries(t *testing.T) {
	input := map[string]string{
		" orderId ": " ord_123 ",
		"window":    " tomorrow ",
		"blank":     " ",
		" ":         "dropped",
		"":          "dropped",
	}

	expected := map[string]string{
		"orderId": "ord_123",
		"window":  "tomorrow",
		"blank":   "",
	}

	if got := NormalizeStringMap(input); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %#v got %#v", expected, got)
	}
}

func TestNormalizeStringMapCollapsesToNil(t *testing.T) {
	if NormalizeStringMap(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
	if NormalizeStringMap(map[string]string{}) != nil {
		t.Fatalf("expected nil for empty map")
	}
	if NormalizeStringMap(map[string]string{" ": "x"}) != nil {
		t.Fatalf("expected nil when every key trims away")
	}
}
