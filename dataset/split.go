package dataset

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// DefaultSplitSeed and DefaultTestFraction give the reference 80/20 split.
const (
	DefaultSplitSeed    = 42
	DefaultTestFraction = 0.2
)

// Split shuffles 0..n-1 with a generator seeded by seed and returns the
// train and test indices. The test set holds ceil(testFraction·n) rows. The
// same arguments always give the same split.
func Split(n int, testFraction float64, seed uint64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.Errorf("test fraction must be in (0, 1), got %g", testFraction)
	}
	nTest := int(math.Ceil(testFraction * float64(n)))
	if n < 2 || nTest >= n {
		return nil, nil, errors.Errorf("cannot split %d rows with test fraction %g", n, testFraction)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// SplitTable applies Split to t.
func SplitTable(t *Table, testFraction float64, seed uint64) (train, test *Table, err error) {
	trainIdx, testIdx, err := Split(t.Rows(), testFraction, seed)
	if err != nil {
		return nil, nil, err
	}
	return t.Subset(trainIdx), t.Subset(testIdx), nil
}
