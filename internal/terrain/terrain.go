package terrain

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"timbermap.tools/internal/raster"
)

// MaxLayers is the largest number of elevation layers the target map
// format supports.
const MaxLayers = 16

var (
	// ErrBucketOverflow marks a bucketized conversion that produced a
	// bucket index at or above the layer ceiling.
	ErrBucketOverflow = errors.New("terrain: bucket index exceeds layer limit")
	// ErrCellUnassigned marks a cell left outside every bucket cutoff,
	// which means the cutoff arithmetic is broken.
	ErrCellUnassigned = errors.New("terrain: cell not covered by any bucket cutoff")
	// ErrBadWeights marks a bucket weight vector that cannot define
	// cutoffs.
	ErrBadWeights = errors.New("terrain: bucket weights must sum to a positive value")
)

// Grid holds per-cell integer elevations in raster scan order, plus the
// min/max actually produced by the conversion. Immutable once built.
type Grid struct {
	Width  int
	Height int
	Min    int
	Max    int

	cells []int
}

// Cells returns the elevations in raster scan order.
func (g *Grid) Cells() []int { return g.cells }

// At returns the elevation at cell (x, y).
func (g *Grid) At(x, y int) int { return g.cells[y*g.Width+x] }

// Linear maps each normalized sample s to
// RoundToEven(s*(maxHeight-minHeight) + minHeight). Ties at .5 round
// half to even.
func Linear(s *raster.Sample, minHeight, maxHeight int) *Grid {
	span := float64(maxHeight - minHeight)
	cells := make([]int, len(s.Values()))
	for i, v := range s.Values() {
		cells[i] = int(math.RoundToEven(v*span + float64(minHeight)))
	}
	return newGrid(s.Width, s.Height, cells)
}

// Bucketized sorts cells by intensity (stable, so equal intensities
// keep raster scan order) and assigns them to elevation buckets sized
// proportionally to the weight vector.
func Bucketized(s *raster.Sample, weights []float64) (*Grid, error) {
	cells, err := bucketize(s.Values(), weights)
	if err != nil {
		return nil, err
	}
	return newGrid(s.Width, s.Height, cells), nil
}

func newGrid(w, h int, cells []int) *Grid {
	g := &Grid{Width: w, Height: h, cells: cells, Min: cells[0], Max: cells[0]}
	for _, c := range cells {
		if c < g.Min {
			g.Min = c
		}
		if c > g.Max {
			g.Max = c
		}
	}
	return g
}

func bucketize(values, weights []float64) ([]int, error) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 || len(weights) == 0 {
		return nil, ErrBadWeights
	}

	n := len(values)
	cutoffs := make([]int, len(weights))
	prefix := 0.0
	for i, w := range weights {
		prefix += w
		cutoffs[i] = int(math.Ceil(prefix / total * float64(n)))
	}
	// Guard the last cutoff against rounding loss so every cell is covered.
	cutoffs[len(cutoffs)-1]++

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	out := make([]int, n)
	for rank, cell := range order {
		bucket := -1
		for b, cut := range cutoffs {
			if cut > rank {
				bucket = b
				break
			}
		}
		switch {
		case bucket < 0:
			return nil, fmt.Errorf("%w: sorted rank %d of %d", ErrCellUnassigned, rank, n)
		case bucket >= MaxLayers:
			return nil, fmt.Errorf("%w: bucket %d >= %d", ErrBucketOverflow, bucket, MaxLayers)
		}
		out[cell] = bucket
	}
	return out, nil
}
