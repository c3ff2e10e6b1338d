package digest

import "testing"

func TestLookup(t *testing.T) {
	p, ok := Lookup("Trypsin")
	if !ok || p != "[KR]" {
		t.Fatalf("Lookup(Trypsin) = (%q, %v)", p, ok)
	}
	if _, ok := Lookup("ImaginaryAse"); ok {
		t.Fatal("unexpected enzyme present")
	}
}

func TestResolvePattern(t *testing.T) {
	if got := ResolvePattern("lys-c"); got != "K" {
		t.Errorf("ResolvePattern(lys-c) = %q, want K", got)
	}
	if got := ResolvePattern("[DE]P?"); got != "[DE]P?" {
		t.Errorf("raw patterns must pass through, got %q", got)
	}
}

func TestEnzymes_SortedAndCompilable(t *testing.T) {
	list := Enzymes()
	if len(list) == 0 {
		t.Fatal("empty registry")
	}
	for i, e := range list {
		if i > 0 && list[i-1].Name >= e.Name {
			t.Errorf("registry not sorted at %s", e.Name)
		}
		if _, err := NewRegexpCleaver(e.Pattern); err != nil {
			t.Errorf("enzyme %s pattern does not compile: %v", e.Name, err)
		}
	}
}
