package identity_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/counsel-relay-api/identity"
)

// sequenceSource makes rand.Intn walk 0, 1, 2, ... so handle order is known
type sequenceSource struct {
	n int64
}

func (s *sequenceSource) Int63() int64 {
	v := s.n << 32
	s.n++
	return v
}

func (s *sequenceSource) Seed(int64) {}

func TestHandleGenerator_Format(t *testing.T) {
	gen, err := identity.NewHandleGenerator("User-", 4)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^User-[1-9][0-9]{3}$`)
	for i := 0; i < 1000; i++ {
		assert.Regexp(t, pattern, gen.Next())
	}
	assert.Equal(t, 9000, gen.Capacity())
}

func TestHandleGenerator_Sequence(t *testing.T) {
	gen, err := identity.NewHandleGeneratorWithSource("User-", 4, &sequenceSource{})
	require.NoError(t, err)

	assert.Equal(t, "User-1000", gen.Next())
	assert.Equal(t, "User-1001", gen.Next())
}

func TestNewHandleGenerator_InvalidDigits(t *testing.T) {
	_, err := identity.NewHandleGenerator("User-", 0)
	assert.Error(t, err)

	_, err = identity.NewHandleGenerator("User-", 10)
	assert.Error(t, err)
}
