package pack

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"timbermap.tools/internal/mapdoc"
)

func testDoc() *mapdoc.Map {
	return &mapdoc.Map{
		GameVersion: "1.0-test",
		Singletons: mapdoc.Singletons{
			MapSize:               mapdoc.MapSize{Size: mapdoc.Size{X: 2, Y: 2}},
			TerrainMap:            mapdoc.TerrainMap{Heights: mapdoc.IntArray{3, 4, 5, 6}},
			SoilMoistureSimulator: mapdoc.SoilMoistureSimulator{MoistureLevels: mapdoc.FloatArray{0, 16, 14.59, 0}},
			WaterMap: mapdoc.WaterMap{
				WaterDepths: mapdoc.FloatArray{0, 1, 0, 0},
				Outflows:    mapdoc.StringArray{mapdoc.NoOutflow, mapdoc.NoOutflow, mapdoc.NoOutflow, mapdoc.NoOutflow},
			},
		},
		Entities: []mapdoc.Entity{},
	}
}

func TestWrite_ArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "mymap.json")

	archive, err := Write(testDoc(), jsonPath, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Ext(archive) != Extension {
		t.Fatalf("archive extension: %s", archive)
	}
	if _, err := os.Stat(jsonPath); !os.IsNotExist(err) {
		t.Fatalf("intermediate JSON must be removed, stat err: %v", err)
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 1 || zr.File[0].Name != EntryName {
		t.Fatalf("archive entries: %+v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}

	var got mapdoc.Map
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	want := testDoc()
	if got.GameVersion != want.GameVersion {
		t.Fatalf("game version: %s", got.GameVersion)
	}
	for i, h := range want.Singletons.TerrainMap.Heights {
		if got.Singletons.TerrainMap.Heights[i] != h {
			t.Fatalf("heights[%d]: got %d want %d", i, got.Singletons.TerrainMap.Heights[i], h)
		}
	}
	for i, m := range want.Singletons.SoilMoistureSimulator.MoistureLevels {
		if got.Singletons.SoilMoistureSimulator.MoistureLevels[i] != m {
			t.Fatalf("moisture[%d]: got %v want %v", i, got.Singletons.SoilMoistureSimulator.MoistureLevels[i], m)
		}
	}
}

func TestWrite_KeepJSON(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "mymap.json")

	_, err := Write(testDoc(), jsonPath, Options{KeepJSON: true, Digest: "deadbeefcafe"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	kept := filepath.Join(dir, "mymap-mapperdeadbeef.json")
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("kept intermediate missing: %v", err)
	}
}

func TestWrite_UnwritableDestination(t *testing.T) {
	jsonPath := filepath.Join(t.TempDir(), "no", "such", "dir", "map.json")
	if _, err := Write(testDoc(), jsonPath, Options{}); err == nil {
		t.Fatalf("want error for unwritable destination")
	}
}
