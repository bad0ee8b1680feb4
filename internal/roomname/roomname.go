// Package roomname generates memorable room identifiers for calls started
// without an explicit room argument. The server accepts any string as a room
// id; names exist purely so humans can read one over the phone.
package roomname

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generate creates a random, memorable room name.
// Format: adjective-animal-thing (e.g., "fluffy-otter-comet").
// Uniqueness is not guaranteed; the pools are large enough that a collision
// means joining a stranger's fresh room, which admission control already
// handles like any other third join.
func Generate() string {
	return fmt.Sprintf("%s-%s-%s",
		adjectives[randomIndex(len(adjectives))],
		animals[randomIndex(len(animals))],
		things[randomIndex(len(things))],
	)
}

// randomIndex returns a cryptographically secure random index for a slice of
// given length.
func randomIndex(length int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(length)))
	if err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; there is no sensible fallback for name generation.
		panic(err)
	}
	return int(n.Int64())
}
