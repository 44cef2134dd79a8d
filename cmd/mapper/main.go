package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"timbermap.tools/internal/config"
	"timbermap.tools/internal/convert"
	"timbermap.tools/internal/mapdoc"
	"timbermap.tools/internal/mapindex"
	"timbermap.tools/internal/pack"
	"timbermap.tools/internal/specfile"
)

func main() {
	var (
		output = flag.String("output", "", "output path for the map archive (default: next to the input)")

		minElevation = flag.Int("min-elevation", 3, "soil elevation at the lowest heightmap point")
		maxElevation = flag.Int("max-elevation", 16, "soil elevation at the highest heightmap point")
		width        = flag.Int("width", -1, "resulting map width (<=0 keeps the image width)")
		height       = flag.Int("height", -1, "resulting map height (<=0 keeps the image height)")

		treemap        = flag.String("treemap", "", "grayscale tree density image (optional)")
		treelineCutoff = flag.Float64("treeline-cutoff", 0.1, "density below which no trees spawn")
		birchCutoff    = flag.Float64("birch-cutoff", 0.3, "density below which trees spawn as birch")
		pineCutoff     = flag.Float64("pine-cutoff", 0.45, "density below which trees spawn as pine")
		chestnutCutoff = flag.Float64("chestnut-cutoff", 0.6, "density below which trees spawn as chestnut")

		waterMap = flag.String("water-map", "", "grayscale water mask image (optional)")

		configPath = flag.String("config", "", "path to mapper YAML config (optional)")
		keepJSON   = flag.Bool("keep-json", false, "keep the uncompressed document next to the archive")
		disableDB  = flag.Bool("disable_db", false, "disable the conversion index")
		recent     = flag.Int("recent", 0, "list the N most recent conversions and exit")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[mapper] ", log.LstdFlags)
	debug := log.New(io.Discard, "[mapper] ", log.LstdFlags)
	if *verbose {
		debug = logger
	}

	if *recent > 0 {
		listRecent(*recent, logger)
		return
	}

	if flag.NArg() != 1 {
		logger.Fatalf("usage: mapper [flags] <heightmap image or .json spec file>")
	}
	input := flag.Arg(0)
	if _, err := os.Stat(input); err != nil {
		logger.Fatalf("input: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *keepJSON {
		cfg.KeepJSON = true
	}

	// Specfile mode pulls every map option from the JSON document;
	// manual mode builds the spec from the flags above.
	var spec convert.Spec
	baseDir := filepath.Dir(input)
	if strings.EqualFold(filepath.Ext(input), ".json") {
		debug.Printf("processing %s as a spec file", input)
		spec, err = specfile.Parse(input)
		if err != nil {
			logger.Fatalf("spec file: %v", err)
		}
	} else {
		spec = manualSpec(input, *width, *height, *minElevation, *maxElevation,
			*waterMap, *treemap, *treelineCutoff, *birchCutoff, *pineCutoff, *chestnutCutoff)
	}

	if w, h, clamped := cfg.ClampSize(spec.Width, spec.Height); clamped {
		logger.Printf("requested size %dx%d exceeds limit %d, adjusted to %dx%d",
			spec.Width, spec.Height, cfg.MaxMapSizeLimit, w, h)
		spec.Width, spec.Height = w, h
	}

	result, err := convert.Run(spec, baseDir, cfg.GameVersion, mapdoc.NewRand(), debug)
	if err != nil {
		logger.Fatalf("convert: %v", err)
	}
	debug.Printf("terrain digest: sha256 %s", result.Digest)

	jsonPath := outputPath(input, *output, cfg.MapsDir)
	archive, err := pack.Write(result.Doc, jsonPath, pack.Options{
		KeepJSON: cfg.KeepJSON,
		Digest:   result.Digest,
	})
	if err != nil {
		logger.Fatalf("pack: %v", err)
	}
	logger.Printf("saved %s (%dx%d, %d trees, %s)",
		archive, result.Width, result.Height, result.Trees, result.Elapsed.Round(time.Millisecond))

	if !*disableDB {
		recordConversion(archive, result, logger, debug)
	}
}

func manualSpec(input string, width, height, minElev, maxElev int,
	waterMap, treemap string, treeline, birch, pine, chestnut float64) convert.Spec {

	spec := convert.Spec{
		Width:  width,
		Height: height,
		Heightmap: convert.HeightmapSpec{
			Filename: filepath.Base(input),
			Linear:   &convert.LinearSpec{MinHeight: minElev, MaxHeight: maxElev},
		},
	}
	if waterMap != "" {
		spec.Watermap = &convert.WatermapSpec{Filename: waterMap}
	}
	if treemap != "" {
		tm := convert.DefaultTreemap(treemap)
		tm.TreelineCutoff = treeline
		tm.BirchCutoff = birch
		tm.PineCutoff = pine
		tm.ChestnutCutoff = chestnut
		spec.Treemap = tm
	}
	return spec
}

// outputPath picks where the intermediate JSON goes: the explicit
// -output, the configured maps directory, or next to the input.
func outputPath(input, output, mapsDir string) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	switch {
	case output != "":
		return strings.TrimSuffix(output, filepath.Ext(output)) + ".json"
	case mapsDir != "":
		return filepath.Join(mapsDir, stem+".json")
	default:
		return filepath.Join(filepath.Dir(input), stem+".json")
	}
}

func indexPath() (string, error) {
	home, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "timbermap", "index.db"), nil
}

func listRecent(limit int, logger *log.Logger) {
	path, err := indexPath()
	if err != nil {
		logger.Fatalf("conversion index: %v", err)
	}
	ix, err := mapindex.Open(path)
	if err != nil {
		logger.Fatalf("conversion index: %v", err)
	}
	defer ix.Close()

	rows, err := ix.Recent(context.Background(), limit)
	if err != nil {
		logger.Fatalf("conversion index: %v", err)
	}
	if len(rows) == 0 {
		logger.Printf("no conversions recorded yet")
		return
	}
	for _, r := range rows {
		logger.Printf("%s  %dx%d  %d trees  %dms  %s  sha256 %.8s",
			r.CreatedAt, r.Width, r.Height, r.Entities, r.DurationMs, r.Artifact, r.Digest)
	}
}

func recordConversion(archive string, result *convert.Result, logger, debug *log.Logger) {
	path, err := indexPath()
	if err != nil {
		debug.Printf("conversion index disabled: %v", err)
		return
	}
	ix, err := mapindex.Open(path)
	if err != nil {
		logger.Printf("conversion index unavailable: %v", err)
		return
	}
	defer ix.Close()

	ctx := context.Background()
	if seen, err := ix.SeenDigest(ctx, result.Digest); err == nil && seen {
		debug.Printf("identical terrain converted before (digest %s)", result.Digest[:8])
	}
	if err := ix.Record(ctx, mapindex.Conversion{
		Artifact:   archive,
		Digest:     result.Digest,
		Width:      result.Width,
		Height:     result.Height,
		Entities:   result.Trees,
		DurationMs: result.Elapsed.Milliseconds(),
	}); err != nil {
		logger.Printf("conversion index: %v", err)
	}
}
