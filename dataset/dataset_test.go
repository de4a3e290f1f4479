package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pibnn_lib/tensor"
)

const sample = `id,W,S,R,N
1,10,200,0.1,5.5
2,12,180,0.5,6.1
3,8,220,-1,4.9
4,11,190,0.1,5.8
`

var features = []string{"W", "S", "R"}

func TestReadSelectsNamedColumns(t *testing.T) {
	tab, err := Read(strings.NewReader(sample), features, "N")
	require.NoError(t, err)
	assert.Equal(t, 4, tab.Rows())
	assert.Equal(t, []int{4, 3}, tab.X.Shape)
	assert.Equal(t, []float64{10, 200, 0.1}, tab.X.Row(0))
	assert.Equal(t, []float64{5.5, 6.1, 4.9, 5.8}, tab.Y.Data)

	// Column order follows the request, not the file.
	tab, err = Read(strings.NewReader(sample), []string{"R", "W"}, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 12}, tab.X.Row(1))
	assert.Equal(t, []int{4, 1}, tab.Y.Shape)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader(sample), []string{"W", "X"}, "N")
	require.ErrorIs(t, err, ErrColumnNotFound)

	_, err = Read(strings.NewReader(sample), features, "missing")
	require.ErrorIs(t, err, ErrColumnNotFound)

	_, err = Read(strings.NewReader("W,S,R,N\n1,2,3\n"), features, "N")
	var rowErr errInvalidRow
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.lineNum)

	_, err = Read(strings.NewReader("W,S,R,N\n1,2,x,4\n"), features, "N")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "R"`)

	_, err = Read(strings.NewReader(""), features, "N")
	require.Error(t, err)
	_, err = Read(strings.NewReader("W,S,R,N\n"), features, "N")
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	tab, err := Load(path, features, "N")
	require.NoError(t, err)
	assert.Equal(t, 4, tab.Rows())

	_, err = Load(filepath.Join(t.TempDir(), "nope.csv"), features, "N")
	require.Error(t, err)
}

func TestScalerStandardizes(t *testing.T) {
	x, err := tensor.FromRows([][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}})
	require.NoError(t, err)

	var s Scaler
	z, err := s.FitTransform(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 5}, s.Mean)
	// Population std of 1..4 is sqrt(1.25); constant column gets 1.
	assert.InDelta(t, 1.118033988749895, s.Std[0], 1e-12)
	assert.Equal(t, 1.0, s.Std[1])

	col := z.Col(0)
	var sum, sq float64
	for _, v := range col {
		sum += v
		sq += v * v
	}
	assert.InDelta(t, 0, sum/4, 1e-12)
	assert.InDelta(t, 1, sq/4, 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, z.Col(1))
	// Input untouched.
	assert.Equal(t, 1.0, x.At(0, 0))

	restored, err := ScalerFromData(s.Data())
	require.NoError(t, err)
	again, err := restored.Transform(x)
	require.NoError(t, err)
	assert.Equal(t, z.Data, again.Data)

	_, err = restored.Transform(tensor.New(2, 3))
	require.Error(t, err)
}

func TestScalerErrors(t *testing.T) {
	var s Scaler
	_, err := s.Transform(tensor.New(1, 2))
	require.Error(t, err)
	require.Error(t, s.Fit(tensor.New(0, 2)))
	_, err = ScalerFromData(nil)
	require.Error(t, err)
}

func TestSplitIsReproducible(t *testing.T) {
	train1, test1, err := Split(20, DefaultTestFraction, DefaultSplitSeed)
	require.NoError(t, err)
	train2, test2, err := Split(20, DefaultTestFraction, DefaultSplitSeed)
	require.NoError(t, err)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
	assert.Len(t, test1, 4)
	assert.Len(t, train1, 16)

	all := append(append([]int{}, train1...), test1...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	// ceil(0.2·21) = 5
	_, test, err := Split(21, DefaultTestFraction, DefaultSplitSeed)
	require.NoError(t, err)
	assert.Len(t, test, 5)

	_, other, err := Split(20, DefaultTestFraction, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test1, other)
}

func TestSplitRejectsDegenerateInput(t *testing.T) {
	_, _, err := Split(1, 0.2, 42)
	require.Error(t, err)
	_, _, err = Split(10, 0, 42)
	require.Error(t, err)
	_, _, err = Split(10, 1, 42)
	require.Error(t, err)
}

func TestSplitTable(t *testing.T) {
	tab, err := Read(strings.NewReader(sample), features, "N")
	require.NoError(t, err)
	train, test, err := SplitTable(tab, 0.25, DefaultSplitSeed)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Rows())
	assert.Equal(t, 1, test.Rows())
	assert.Equal(t, features, test.Features)
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, []float64{1}, []float64{1.5}, []float64{0.5}, []float64{2}))
	assert.Equal(t, "true,mean,lower,upper\n1,1.5,0.5,2\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteReport(&buf, nil, []float64{1.5}, []float64{0.5}, []float64{2}))
	assert.Equal(t, "mean,lower,upper\n1.5,0.5,2\n", buf.String())
}
