package identity

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// HandleGenerator produces anonymous handles of the form prefix + a
// fixed-width random number. With four digits the suffix lies in
// [1000, 9999].
type HandleGenerator struct {
	prefix string
	low    int
	span   int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHandleGenerator returns a generator seeded from the clock
func NewHandleGenerator(prefix string, digits int) (*HandleGenerator, error) {
	return NewHandleGeneratorWithSource(prefix, digits, rand.NewSource(time.Now().UnixNano()))
}

// NewHandleGeneratorWithSource returns a generator driven by src, for
// reproducible sequences in tests
func NewHandleGeneratorWithSource(prefix string, digits int, src rand.Source) (*HandleGenerator, error) {
	if digits < 1 || digits > 9 {
		return nil, fmt.Errorf("handle digits must be between 1 and 9, got %d", digits)
	}
	low := 1
	for i := 1; i < digits; i++ {
		low *= 10
	}
	return &HandleGenerator{
		prefix: prefix,
		low:    low,
		span:   low*10 - low,
		rng:    rand.New(src),
	}, nil
}

// Next returns a candidate handle. Uniqueness is up to the caller.
func (g *HandleGenerator) Next() string {
	g.mu.Lock()
	n := g.low + g.rng.Intn(g.span)
	g.mu.Unlock()
	return g.prefix + strconv.Itoa(n)
}

// Capacity is the number of distinct handles the generator can produce
func (g *HandleGenerator) Capacity() int {
	return g.span
}
