package mapdoc

import (
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"timbermap.tools/internal/flora"
	"timbermap.tools/internal/hydro"
	"timbermap.tools/internal/terrain"
)

// Cosmetic attribute ranges and rounding the map editor expects.
const (
	offsetRange   = 0.25 // sub-cell positional offset, per axis
	scaleBase     = 0.5  // model scale in [0.5, 1.25)
	scaleRange    = 0.75
	rotationRange = 360.0

	modelRound  = 6 // decimals kept on rotation and scale
	growthRound = 2 // decimals kept on gatherable growth progress
)

// Assemble composes the final document from the three stage outputs.
// Entity construction draws cosmetic attributes from rng; pass a seeded
// generator for reproducible output, or NewRand() for the default
// unseeded behavior.
func Assemble(gameVersion string, elev *terrain.Grid, water *hydro.Field, trees []flora.Placement, rng *rand.Rand) *Map {
	n := elev.Width * elev.Height
	outflows := make(StringArray, n)
	for i := range outflows {
		outflows[i] = NoOutflow
	}

	entities := make([]Entity, 0, len(trees))
	for _, t := range trees {
		entities = append(entities, NewTree(t, rng))
	}

	return &Map{
		GameVersion: gameVersion,
		Singletons: Singletons{
			MapSize:               MapSize{Size: Size{X: elev.Width, Y: elev.Height}},
			SoilMoistureSimulator: SoilMoistureSimulator{MoistureLevels: FloatArray(water.Moisture())},
			TerrainMap:            TerrainMap{Heights: IntArray(elev.Cells())},
			WaterMap:              WaterMap{WaterDepths: FloatArray(water.Depths()), Outflows: outflows},
		},
		Entities: entities,
	}
}

// NewTree builds the entity record for one placement. Draw order from
// rng is fixed: offset X, offset Y, scale, rotation, then gatherable
// growth when the species has a secondary yield.
func NewTree(t flora.Placement, rng *rand.Rand) Entity {
	offX := rng.Float64() * offsetRange
	offY := rng.Float64() * offsetRange
	scale := roundTo(rng.Float64()*scaleRange+scaleBase, modelRound)
	rotation := roundTo(rng.Float64()*rotationRange, modelRound)

	c := Components{
		BlockObject: BlockObject{
			Coordinates: Coordinates{X: t.X, Y: t.Y, Z: t.Z},
			Orientation: Orientation{Value: "Cw0"},
		},
		CoordinatesOffseter:   CoordinatesOffseter{CoordinatesOffset: Offset{X: offX, Y: offY}},
		Growable:              Growable{GrowthProgress: 1.0},
		LivingNaturalResource: LivingNaturalResource{IsDead: !t.Alive},
		NaturalResourceModelRandomizer: ModelRandomizer{
			Rotation:      rotation,
			DiameterScale: scale,
			HeightScale:   scale,
		},
		Prioritizable: Prioritizable{Priority: Priority{Value: "Normal"}},
		WateredObject: WateredObject{IsDry: !t.Alive},
		YielderCuttable: Yielder{Yield: Yield{
			Good:   Good{ID: flora.GoodLog},
			Amount: t.Species.LogYield,
		}},
		Inventory: GoodStack{Storage: Storage{Goods: []Good{}}},
	}

	if t.Species.Gatherable != "" {
		c.GatherableYieldGrower = &YieldGrower{GrowthProgress: roundTo(rng.Float64(), growthRound)}
		c.YielderGatherable = &Yielder{Yield: Yield{
			Good:   Good{ID: t.Species.Gatherable},
			Amount: t.Species.GatherYield,
		}}
	}

	return Entity{
		ID:           uuid.NewString(),
		TemplateName: t.Species.Template,
		Components:   c,
	}
}

// NewRand returns the default cosmetic generator: process-wide entropy,
// deliberately not fixed-seeded.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
