// Package shuffle holds the seeded permutations used when building and
// rendering attempts.
package shuffle

import (
	"math/rand"
	"sort"
	"time"

	"github.com/mind-engage/mindengage-assessment/internal/exam"
)

// SeedFor is the option-order seed of an attempt: its creation time in Unix
// milliseconds. Changing it reorders every stored attempt's options.
func SeedFor(createdAt time.Time) int64 {
	return createdAt.UnixMilli()
}

// Slice permutes s in place (Fisher-Yates) using rng.
func Slice[T any](rng *rand.Rand, s []T) {
	rng.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// Options returns opts in the order fixed by seed. The input is sorted by id
// first, so the result depends only on the option set and the seed.
func Options(opts []exam.Option, seed int64) []exam.Option {
	out := append([]exam.Option(nil), opts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	Slice(rand.New(rand.NewSource(seed)), out)
	return out
}
