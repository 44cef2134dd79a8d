package flora

import (
	"timbermap.tools/internal/hydro"
	"timbermap.tools/internal/raster"
	"timbermap.tools/internal/terrain"
)

// Species describes one tree template and its yields. LogYield is the
// primary cuttable good; Gatherable is an optional periodic yield
// (resin, syrup, nuts) and is empty for species without one.
type Species struct {
	Template    string
	LogYield    int
	Gatherable  string
	GatherYield int
}

// The good identifiers used by yield components.
const (
	GoodLog        = "Log"
	GoodPineResin  = "PineResin"
	GoodMapleSyrup = "MapleSyrup"
	GoodChestnut   = "Chestnut"
)

var (
	Birch    = Species{Template: "Birch", LogYield: 1}
	Pine     = Species{Template: "Pine", LogYield: 2, Gatherable: GoodPineResin, GatherYield: 2}
	Chestnut = Species{Template: "ChestnutTree", LogYield: 4, Gatherable: GoodChestnut, GatherYield: 3}
	Maple    = Species{Template: "Maple", LogYield: 8, Gatherable: GoodMapleSyrup, GatherYield: 3}
)

// Cutoffs classifies density samples into species by ascending
// intensity. A sample below Treeline yields no tree at all; otherwise
// the first cutoff strictly above the sample picks the species, and
// anything at or above Chestnut becomes the top species (maple).
type Cutoffs struct {
	Treeline float64
	Birch    float64
	Pine     float64
	Chestnut float64
}

// DefaultCutoffs are the converter's stock thresholds.
func DefaultCutoffs() Cutoffs {
	return Cutoffs{Treeline: 0.1, Birch: 0.3, Pine: 0.45, Chestnut: 0.6}
}

// Classify picks the species for a density sample. The comparison is a
// strict less-than on every boundary.
func (c Cutoffs) Classify(density float64) Species {
	switch {
	case density < c.Birch:
		return Birch
	case density < c.Pine:
		return Pine
	case density < c.Chestnut:
		return Chestnut
	default:
		return Maple
	}
}

// Placement records one tree at integer cell coordinates. Alive mirrors
// whether the moisture field irrigates the cell.
type Placement struct {
	Species Species
	X, Y, Z int
	Alive   bool
}

// Place walks the density raster in scan order and emits one placement
// per cell at or above the treeline cutoff. Elevation and moisture are
// read from the same scan index.
func Place(density *raster.Sample, elev *terrain.Grid, water *hydro.Field, cut Cutoffs) []Placement {
	var out []Placement
	moisture := water.Moisture()
	heights := elev.Cells()
	for i, d := range density.Values() {
		if d < cut.Treeline {
			continue
		}
		y := i / density.Width
		x := i - y*density.Width
		out = append(out, Placement{
			Species: cut.Classify(d),
			X:       x,
			Y:       y,
			Z:       heights[i],
			Alive:   moisture[i] > 0,
		})
	}
	return out
}
