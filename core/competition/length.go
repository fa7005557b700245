package competition

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// GameLength draws the number of timeslots to play: min plus a geometric
// tail whose mean keeps the expected length at expected. It returns 0 when
// min is 0, meaning no limit.
func GameLength(min, expected int, seed int64) int {
	if min <= 0 {
		return 0
	}
	if expected <= min {
		return min
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := 1.0 / float64(expected-min+1)
	exp := distuv.Exponential{Rate: -math.Log(1 - p)}
	roll := rand.New(rand.NewSource(seed)).Float64()
	return min + int(math.Floor(exp.Quantile(roll)))
}
