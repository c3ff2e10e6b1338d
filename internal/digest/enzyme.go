package digest

import (
	"sort"
	"strings"
)

// enzymes maps protease names to C-terminal cleavage patterns.
var enzymes = map[string]string{
	"trypsin":      "[KR]",
	"lys-c":        "K",
	"arg-c":        "R",
	"glu-c":        "[DE]",
	"chymotrypsin": "[FWYL]",
	"pepsin":       "[FL]",
}

// Enzyme is a named cleavage pattern.
type Enzyme struct {
	Name    string
	Pattern string
}

// Lookup returns the pattern registered for name (case-insensitive).
func Lookup(name string) (string, bool) {
	p, ok := enzymes[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ResolvePattern returns the registered pattern when s names an enzyme,
// and s itself otherwise.
func ResolvePattern(s string) string {
	if p, ok := Lookup(s); ok {
		return p
	}
	return s
}

// Enzymes lists the registry sorted by name.
func Enzymes() []Enzyme {
	out := make([]Enzyme, 0, len(enzymes))
	for name, p := range enzymes {
		out = append(out, Enzyme{Name: name, Pattern: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
