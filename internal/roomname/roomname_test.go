package roomname

import (
	"strings"
	"testing"
)

func TestGenerateShape(t *testing.T) {
	name := Generate()

	parts := strings.Split(name, "-")
	if len(parts) != 3 {
		t.Fatalf("got %q, want adjective-animal-thing", name)
	}
	if !contains(adjectives, parts[0]) {
		t.Errorf("first word %q not an adjective", parts[0])
	}
	if !contains(animals, parts[1]) {
		t.Errorf("second word %q not an animal", parts[1])
	}
	if !contains(things, parts[2]) {
		t.Errorf("third word %q not a thing", parts[2])
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Generate()] = true
	}
	// 36000 combinations; 50 identical draws means the randomness is broken.
	if len(seen) < 2 {
		t.Fatalf("50 draws produced %d distinct names", len(seen))
	}
}

func contains(pool []string, word string) bool {
	for _, w := range pool {
		if w == word {
			return true
		}
	}
	return false
}
