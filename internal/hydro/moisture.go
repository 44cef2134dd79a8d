package hydro

import (
	"timbermap.tools/internal/raster"
	"timbermap.tools/internal/terrain"
)

const (
	// passes is the fixed relaxation count; the game's own simulator
	// saturates moisture at 16, so the field never propagates further.
	passes = 16
	// farPotential is the sentinel assigned to dry cells and to
	// out-of-bounds neighbors. It acts as a high-cost boundary, not a
	// hard wall.
	farPotential = 100.0

	diagonalCost   = 1.41
	verticalFactor = 4.0
)

// Field holds the per-cell binary water depth and the continuous
// moisture influence (0..16) produced by the relaxation passes.
// Immutable once built.
type Field struct {
	Width  int
	Height int

	depths   []float64
	moisture []float64
}

// Depths returns the 0/1 water depth per cell in raster scan order.
func (f *Field) Depths() []float64 { return f.depths }

// Moisture returns the diffused moisture per cell in raster scan order.
func (f *Field) Moisture() []float64 { return f.moisture }

// Zero returns the no-water field: depth and moisture zero everywhere.
// Used when no water mask image is supplied.
func Zero(width, height int) *Field {
	n := width * height
	return &Field{
		Width:    width,
		Height:   height,
		depths:   make([]float64, n),
		moisture: make([]float64, n),
	}
}

// FromMask rounds the water-mask raster to a 0/1 depth per cell and
// relaxes a potential field over it for exactly 16 passes. Crossing a
// cell border costs 1 orthogonally and 1.41 diagonally, plus 4 per unit
// of elevation difference. Every pass reads only the field finished by
// the previous pass.
func FromMask(mask *raster.Sample, elev *terrain.Grid) *Field {
	w, h := mask.Width, mask.Height
	n := w * h

	depths := make([]float64, n)
	cur := make([]float64, n)
	for i, r := range mask.Rounded() {
		if r > 0 {
			depths[i] = 1
			cur[i] = 0
		} else {
			cur[i] = farPotential
		}
	}

	next := make([]float64, n)
	for pass := 0; pass < passes; pass++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				best := cur[y*w+x]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if v := transfer(cur, elev, w, h, x, y, dx, dy); v < best {
							best = v
						}
					}
				}
				next[y*w+x] = best
			}
		}
		cur, next = next, cur
	}

	moisture := make([]float64, n)
	for i, d := range cur {
		if m := passes - d; m > 0 {
			moisture[i] = m
		}
	}
	return &Field{Width: w, Height: h, depths: depths, moisture: moisture}
}

// transfer is the cost of reaching (x, y) through the neighbor at
// (x+dx, y+dy) under the prior pass's potentials.
func transfer(prior []float64, elev *terrain.Grid, w, h, x, y, dx, dy int) float64 {
	nx, ny := x+dx, y+dy
	if nx < 0 || nx >= w || ny < 0 || ny >= h {
		return farPotential
	}

	horizontal := 0.0
	switch abs(dx) + abs(dy) {
	case 1:
		horizontal = 1
	case 2:
		horizontal = diagonalCost
	}

	vertical := float64(abs(elev.At(x, y)-elev.At(nx, ny))) * verticalFactor
	return prior[ny*w+nx] + horizontal + vertical
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
