package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if v == "" || strings.ContainsAny(v, " \n") {
		t.Errorf("Get() = %q, want a trimmed version", v)
	}
	if !strings.HasPrefix(String(), "digestflow "+v+" (") {
		t.Errorf("String() = %q", String())
	}
}
