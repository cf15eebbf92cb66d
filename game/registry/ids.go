package registry

import (
	"crypto/rand"
	"io"
)

// CodeAlphabet is the set of characters used in room codes. It leaves out
// 0/O and 1/I so codes survive being read aloud or typed from a screenshot.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a generated room code
const CodeLength = 6

// IDGenerator produces short room codes that are unique among live rooms
type IDGenerator struct {
	rand io.Reader
}

// NewIDGenerator creates a generator backed by crypto/rand
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{rand: rand.Reader}
}

// NewIDGeneratorFromReader creates a generator reading randomness from r
func NewIDGeneratorFromReader(r io.Reader) *IDGenerator {
	return &IDGenerator{rand: r}
}

// Generate returns a code for which exists reports false. It retries on
// collision; with 32^6 codes the expected number of attempts stays close
// to one for any realistic number of live rooms.
func (g *IDGenerator) Generate(exists func(id string) bool) string {
	for {
		id := g.next()
		if exists == nil || !exists(id) {
			return id
		}
	}
}

func (g *IDGenerator) next() string {
	// len(CodeAlphabet) is 32, so masking a byte to 5 bits is unbiased
	buf := make([]byte, CodeLength)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		panic("registry: random source failed: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[b&31]
	}
	return string(buf)
}
