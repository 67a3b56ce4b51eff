package midivcs

import "math/rand/v2"

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewID returns a random base62 id for which exists returns false. Ids start
// at two characters; every collision makes the next candidate one character
// longer, so a crowded container quickly moves to a larger id space. A nil
// exists accepts the first candidate.
func NewID(exists func(ID) bool) ID {
	for n := 2; ; n++ {
		b := make([]byte, n)
		for i := range b {
			b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
		}
		id := ID(b)
		if exists == nil || !exists(id) {
			return id
		}
	}
}
