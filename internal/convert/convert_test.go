package convert

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, dir, name string, w, h int, ys []uint16) string {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for i, y := range ys {
		img.SetGray16(i%w, i/w, color.Gray16{Y: y})
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", name, err)
	}
	return path
}

func testRand() *rand.Rand { return rand.New(rand.NewPCG(3, 9)) }

func TestValidate_RejectsBothConversions(t *testing.T) {
	spec := Spec{Heightmap: HeightmapSpec{
		Filename:   "h.png",
		Linear:     DefaultLinear(),
		Bucketized: &BucketizedSpec{Weights: DefaultWeights()},
	}}
	if err := spec.Validate(); !errors.Is(err, ErrConversionConflict) {
		t.Fatalf("want ErrConversionConflict, got %v", err)
	}
}

func TestValidate_DefaultsToLinear(t *testing.T) {
	spec := Spec{Heightmap: HeightmapSpec{Filename: "h.png"}}
	if err := spec.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	lc := spec.Heightmap.Linear
	if lc == nil || lc.MinHeight != 3 || lc.MaxHeight != 16 {
		t.Fatalf("default linear: %+v", lc)
	}
}

func TestValidate_RequiresHeightmap(t *testing.T) {
	spec := Spec{}
	if err := spec.Validate(); !errors.Is(err, ErrNoHeightmap) {
		t.Fatalf("want ErrNoHeightmap, got %v", err)
	}
}

func TestRun_HeightmapOnly(t *testing.T) {
	dir := t.TempDir()
	// Flat 4x4 except one brighter corner.
	ys := make([]uint16, 16)
	for i := range ys {
		ys[i] = 10
	}
	ys[3] = 200 // image (3,0); mirrored to grid (0,0)
	writePNG(t, dir, "height.png", 4, 4, ys)

	spec := Spec{Heightmap: HeightmapSpec{Filename: "height.png"}}
	res, err := Run(spec, dir, "1.0-test", testRand(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Width != 4 || res.Height != 4 {
		t.Fatalf("size: %dx%d", res.Width, res.Height)
	}
	heights := res.Doc.Singletons.TerrainMap.Heights
	if len(heights) != 16 {
		t.Fatalf("heights: %d cells", len(heights))
	}
	if heights[0] != 16 {
		t.Fatalf("corner elevation: got %d want 16", heights[0])
	}
	for i := 1; i < 16; i++ {
		if heights[i] != 3 {
			t.Fatalf("flat cell %d: got %d want 3", i, heights[i])
		}
	}
	// No water mask: depth and moisture all zero.
	for i, m := range res.Doc.Singletons.SoilMoistureSimulator.MoistureLevels {
		if m != 0 {
			t.Fatalf("moisture[%d] = %v without a water mask", i, m)
		}
	}
	if res.Trees != 0 || len(res.Doc.Entities) != 0 {
		t.Fatalf("unexpected trees: %d", res.Trees)
	}
	if res.Digest == "" {
		t.Fatalf("missing terrain digest")
	}
}

func TestRun_FullPipeline(t *testing.T) {
	dir := t.TempDir()
	ys := make([]uint16, 16)
	for i := range ys {
		ys[i] = uint16(10 + i)
	}
	writePNG(t, dir, "height.png", 4, 4, ys)

	// Water over the whole left half (after mirroring: right half of the image).
	wys := make([]uint16, 16)
	for y := 0; y < 4; y++ {
		wys[y*4+2] = 400
		wys[y*4+3] = 400
	}
	writePNG(t, dir, "water.png", 4, 4, wys)

	// Bright density everywhere: every cell gets a tree.
	tys := make([]uint16, 16)
	for i := range tys {
		tys[i] = uint16(10 + 20*(i%3))
	}
	writePNG(t, dir, "trees.png", 4, 4, tys)

	spec := Spec{
		Heightmap: HeightmapSpec{Filename: "height.png"},
		Watermap:  &WatermapSpec{Filename: "water.png"},
		Treemap: &TreemapSpec{
			Filename:       "trees.png",
			TreelineCutoff: 0, // keep every cell
			BirchCutoff:    0.3,
			PineCutoff:     0.45,
			ChestnutCutoff: 0.6,
		},
	}
	res, err := Run(spec, dir, "1.0-test", testRand(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Trees != 16 || len(res.Doc.Entities) != 16 {
		t.Fatalf("trees: got %d want 16", res.Trees)
	}

	depths := res.Doc.Singletons.WaterMap.WaterDepths
	wet := 0
	for _, d := range depths {
		if d == 1 {
			wet++
		}
	}
	if wet != 8 {
		t.Fatalf("wet cells: got %d want 8", wet)
	}

	// Water cells carry full moisture, so the trees on them are alive.
	moist := res.Doc.Singletons.SoilMoistureSimulator.MoistureLevels
	for i, d := range depths {
		if d == 1 && moist[i] != 16 {
			t.Fatalf("water cell %d moisture: got %v want 16", i, moist[i])
		}
	}
}

func TestRun_MissingImage(t *testing.T) {
	spec := Spec{Heightmap: HeightmapSpec{Filename: "nope.png"}}
	if _, err := Run(spec, t.TempDir(), "1.0-test", testRand(), nil); err == nil {
		t.Fatalf("want error for missing heightmap image")
	}
}

func TestRun_DigestStableForSameTerrain(t *testing.T) {
	dir := t.TempDir()
	ys := make([]uint16, 16)
	for i := range ys {
		ys[i] = uint16(i * 50)
	}
	writePNG(t, dir, "height.png", 4, 4, ys)

	spec := Spec{Heightmap: HeightmapSpec{Filename: "height.png"}}
	a, err := Run(spec, dir, "1.0-test", testRand(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := Run(spec, dir, "1.0-test", testRand(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Digest != b.Digest {
		t.Fatalf("digest not stable: %s vs %s", a.Digest, b.Digest)
	}
}

func TestTreemapSpec_DefaultsOnUnmarshal(t *testing.T) {
	var tm TreemapSpec
	if err := json.Unmarshal([]byte(`{"filename":"d.png","birch_cutoff":0.5}`), &tm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tm.Filename != "d.png" {
		t.Fatalf("filename: %s", tm.Filename)
	}
	if tm.BirchCutoff != 0.5 {
		t.Fatalf("explicit cutoff lost: %v", tm.BirchCutoff)
	}
	if tm.TreelineCutoff != 0.1 || tm.PineCutoff != 0.45 || tm.ChestnutCutoff != 0.6 {
		t.Fatalf("defaults not applied: %+v", tm)
	}
}

func TestLinearSpec_DefaultsOnUnmarshal(t *testing.T) {
	var lc LinearSpec
	if err := json.Unmarshal([]byte(`{"min_height":5}`), &lc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lc.MinHeight != 5 || lc.MaxHeight != 16 {
		t.Fatalf("got %+v want min 5 max 16", lc)
	}
}
