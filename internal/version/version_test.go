package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	got := String()
	if !strings.HasPrefix(got, "exitwatcher dev") || !strings.Contains(got, "commit unknown") {
		t.Fatalf("unexpected version string %q", got)
	}
}
