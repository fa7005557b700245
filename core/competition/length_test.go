package competition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameLength(t *testing.T) {
	assert.Zero(t, GameLength(0, 100, 1))
	assert.Equal(t, 50, GameLength(50, 40, 1))
	assert.Equal(t, GameLength(100, 120, 7), GameLength(100, 120, 7), "same seed same length")

	const n = 4000
	sum := 0
	for seed := int64(1); seed <= n; seed++ {
		l := GameLength(100, 120, seed)
		if l < 100 {
			t.Fatalf("length %d below minimum", l)
		}
		sum += l
	}
	mean := float64(sum) / n
	assert.InDelta(t, 120, mean, 2.5)
}
