package convert

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"timbermap.tools/internal/flora"
	"timbermap.tools/internal/hydro"
	"timbermap.tools/internal/mapdoc"
	"timbermap.tools/internal/raster"
	"timbermap.tools/internal/terrain"
)

var (
	// ErrConversionConflict marks a heightmap spec that selects both
	// elevation conversion strategies at once. Rejected before any I/O.
	ErrConversionConflict = errors.New("convert: linear and bucketized conversion are mutually exclusive")
	// ErrNoHeightmap marks a spec without a heightmap image.
	ErrNoHeightmap = errors.New("convert: heightmap filename is required")
)

// Spec describes one conversion: which images to read and with what
// per-stage parameters. Field names match the JSON spec-file schema.
type Spec struct {
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Heightmap HeightmapSpec `json:"heightmap"`
	Watermap  *WatermapSpec `json:"watermap,omitempty"`
	Treemap   *TreemapSpec  `json:"treemap,omitempty"`
}

type HeightmapSpec struct {
	Filename   string          `json:"filename"`
	Linear     *LinearSpec     `json:"linear_conversion,omitempty"`
	Bucketized *BucketizedSpec `json:"bucketized_conversion,omitempty"`
}

type LinearSpec struct {
	MinHeight int `json:"min_height"`
	MaxHeight int `json:"max_height"`
}

// DefaultLinear is the conversion used when the spec names neither
// strategy.
func DefaultLinear() *LinearSpec { return &LinearSpec{MinHeight: 3, MaxHeight: 16} }

// UnmarshalJSON fills in the stock bounds for fields the document
// leaves out.
func (s *LinearSpec) UnmarshalJSON(b []byte) error {
	type plain LinearSpec
	v := plain(*DefaultLinear())
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = LinearSpec(v)
	return nil
}

type BucketizedSpec struct {
	Weights []float64 `json:"weights"`
}

// DefaultWeights is the stock elevation layer distribution for
// bucketized conversion, one weight per layer.
func DefaultWeights() []float64 {
	return []float64{
		0.0, 0.0, 0.067, 0.1, 0.11, 0.14, 0.15, 0.07,
		0.13, 0.079, 0.049, 0.022, 0.022, 0.011, 0.018, 0.017,
	}
}

func (s *BucketizedSpec) UnmarshalJSON(b []byte) error {
	type plain BucketizedSpec
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if len(v.Weights) == 0 {
		v.Weights = DefaultWeights()
	}
	*s = BucketizedSpec(v)
	return nil
}

type WatermapSpec struct {
	Filename string `json:"filename"`
}

type TreemapSpec struct {
	Filename       string  `json:"filename"`
	TreelineCutoff float64 `json:"treeline_cutoff"`
	BirchCutoff    float64 `json:"birch_cutoff"`
	PineCutoff     float64 `json:"pine_cutoff"`
	ChestnutCutoff float64 `json:"chestnut_cutoff"`
}

// DefaultTreemap returns a treemap spec with the stock species cutoffs.
func DefaultTreemap(filename string) *TreemapSpec {
	c := flora.DefaultCutoffs()
	return &TreemapSpec{
		Filename:       filename,
		TreelineCutoff: c.Treeline,
		BirchCutoff:    c.Birch,
		PineCutoff:     c.Pine,
		ChestnutCutoff: c.Chestnut,
	}
}

func (s *TreemapSpec) UnmarshalJSON(b []byte) error {
	type plain TreemapSpec
	v := plain(*DefaultTreemap(""))
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = TreemapSpec(v)
	return nil
}

func (s *TreemapSpec) cutoffs() flora.Cutoffs {
	return flora.Cutoffs{
		Treeline: s.TreelineCutoff,
		Birch:    s.BirchCutoff,
		Pine:     s.PineCutoff,
		Chestnut: s.ChestnutCutoff,
	}
}

// Validate rejects contradictory specs before any image is read, and
// applies the default linear conversion when neither strategy is named.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Heightmap.Filename) == "" {
		return ErrNoHeightmap
	}
	if s.Heightmap.Linear != nil && s.Heightmap.Bucketized != nil {
		return ErrConversionConflict
	}
	if s.Heightmap.Linear == nil && s.Heightmap.Bucketized == nil {
		s.Heightmap.Linear = DefaultLinear()
	}
	if s.Watermap != nil && strings.TrimSpace(s.Watermap.Filename) == "" {
		return fmt.Errorf("convert: watermap filename must not be empty")
	}
	if s.Treemap != nil && strings.TrimSpace(s.Treemap.Filename) == "" {
		return fmt.Errorf("convert: treemap filename must not be empty")
	}
	return nil
}

// Result carries the assembled document plus conversion metadata for
// logging and indexing.
type Result struct {
	Doc     *mapdoc.Map
	Digest  string // sha256 over the terrain height tokens
	Width   int
	Height  int
	Trees   int
	Elapsed time.Duration
}

// Run executes the full pipeline: heightmap, then water mask, then
// vegetation, then document assembly. Image paths in the spec are
// resolved relative to baseDir. Stages run strictly in sequence; each
// grid is only read, never mutated, once handed to the next stage.
func Run(spec Spec, baseDir, gameVersion string, rng *rand.Rand, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	elev, err := readHeightmap(spec, baseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("heightmap: %w", err)
	}

	water, err := readWaterMask(spec, elev, baseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("water mask: %w", err)
	}

	trees, err := readTreemap(spec, elev, water, baseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("treemap: %w", err)
	}

	doc := mapdoc.Assemble(gameVersion, elev, water, trees, rng)

	return &Result{
		Doc:     doc,
		Digest:  terrainDigest(elev),
		Width:   elev.Width,
		Height:  elev.Height,
		Trees:   len(trees),
		Elapsed: time.Since(start),
	}, nil
}

func readHeightmap(spec Spec, baseDir string, logger *log.Logger) (*terrain.Grid, error) {
	sample, err := raster.Load(filepath.Join(baseDir, spec.Heightmap.Filename), spec.Width, spec.Height)
	if err != nil {
		return nil, err
	}

	var grid *terrain.Grid
	switch {
	case spec.Heightmap.Bucketized != nil:
		logger.Printf("converting heightmap: bucketized, %d weights", len(spec.Heightmap.Bucketized.Weights))
		grid, err = terrain.Bucketized(sample, spec.Heightmap.Bucketized.Weights)
		if err != nil {
			return nil, err
		}
	default:
		lc := spec.Heightmap.Linear
		logger.Printf("converting heightmap: linear, elevation %d..%d", lc.MinHeight, lc.MaxHeight)
		grid = terrain.Linear(sample, lc.MinHeight, lc.MaxHeight)
	}
	logger.Printf("terrain %dx%d, produced elevation %d..%d", grid.Width, grid.Height, grid.Min, grid.Max)
	return grid, nil
}

func readWaterMask(spec Spec, elev *terrain.Grid, baseDir string, logger *log.Logger) (*hydro.Field, error) {
	if spec.Watermap == nil {
		return hydro.Zero(elev.Width, elev.Height), nil
	}
	// The mask is resampled to the terrain's final dimensions so the
	// two grids share a scan order.
	sample, err := raster.Load(filepath.Join(baseDir, spec.Watermap.Filename), elev.Width, elev.Height)
	if err != nil {
		return nil, err
	}
	field := hydro.FromMask(sample, elev)
	wet := 0
	for _, d := range field.Depths() {
		if d > 0 {
			wet++
		}
	}
	logger.Printf("water mask: %d water cells of %d", wet, elev.Width*elev.Height)
	return field, nil
}

func readTreemap(spec Spec, elev *terrain.Grid, water *hydro.Field, baseDir string, logger *log.Logger) ([]flora.Placement, error) {
	if spec.Treemap == nil {
		return nil, nil
	}
	sample, err := raster.Load(filepath.Join(baseDir, spec.Treemap.Filename), elev.Width, elev.Height)
	if err != nil {
		return nil, err
	}
	trees := flora.Place(sample, elev, water, spec.Treemap.cutoffs())
	logger.Printf("treemap: %d trees, %.2f%% coverage", len(trees),
		100*float64(len(trees))/float64(elev.Width*elev.Height))
	return trees, nil
}

func terrainDigest(elev *terrain.Grid) string {
	tokens := make([]string, len(elev.Cells()))
	for i, c := range elev.Cells() {
		tokens[i] = strconv.Itoa(c)
	}
	sum := sha256.Sum256([]byte(strings.Join(tokens, " ")))
	return hex.EncodeToString(sum[:])
}
