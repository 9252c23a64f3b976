package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/geosuggest"
	"github.com/kailas-cloud/geosuggest/internal/domain/geo"
)

const dataset = `{
  "services": [{
    "name": "Sewer",
    "layers": [{
      "name": "ssGravityMain",
      "fields": ["AssetID", "Material"],
      "features": [
        {"id": "1", "attributes": {"AssetID": "PIPE-1042", "Material": "PVC"},
         "geometry": {"kind": "point", "points": [{"x": -79.5, "y": 40.5}]}},
        {"id": "2", "attributes": {"AssetID": "PIPE-2000", "Material": "Clay"}}
      ]
    }]
  }]
}`

func configYAML(extra string) string {
	return `
layers:
  - logical_name: ssGravityMain
    search_fields: [AssetID]
  - logical_name: wtHydrant
    search_fields: [HydrantID]
` + extra
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// run executes the root command with fresh flag state and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagEnv, flagConfig, flagLogLevel, flagData = "local", "", "", ""
	flagMode, flagJSON, flagSelect, flagPackage = "asset", false, false, ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSuggest_InMemoryDataset(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", configYAML(""))
	dataPath := writeFile(t, dir, "data.json", dataset)

	out, err := run(t, "--config", cfgPath, "--data", dataPath, "suggest", "1042")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if !strings.Contains(out, "ssGravityMain • AssetID • PIPE-1042") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "PIPE-2000") {
		t.Errorf("unexpected match in %q", out)
	}
}

func TestSuggest_SelectJSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", configYAML(""))
	dataPath := writeFile(t, dir, "data.json", dataset)

	out, err := run(t, "--config", cfgPath, "--data", dataPath, "suggest", "--select", "--json", "PIPE-1042")
	if err != nil {
		t.Fatalf("suggest --select: %v", err)
	}
	var sel geosuggest.Selection
	if err := json.Unmarshal([]byte(out), &sel); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if sel.FeatureID != "1" || sel.Geometry == nil {
		t.Errorf("selection = %+v", sel)
	}
}

func TestSuggest_InvalidMode(t *testing.T) {
	if _, err := run(t, "suggest", "--mode", "hybrid", "abc"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSeedPackageThenLayers(t *testing.T) {
	dir := t.TempDir()
	dataPath := writeFile(t, dir, "data.json", dataset)
	pkgPath := filepath.Join(dir, "field.gpkg")

	out, err := run(t, "seed", "--package", pkgPath, dataPath)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "imported 2 features") {
		t.Errorf("seed output = %q", out)
	}

	cfgPath := writeFile(t, dir, "config.yaml", configYAML("packages:\n  - path: "+pkgPath+"\n"))
	out, err = run(t, "--config", cfgPath, "layers")
	if err != nil {
		t.Fatalf("layers: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("layers output:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "LAYER") {
		t.Errorf("header = %q", lines[0])
	}
	if f := strings.Fields(lines[1]); f[0] != "ssGravityMain" || f[2] != "ssGravityMain" || f[3] != "exact" || f[4] != "field" {
		t.Errorf("ssGravityMain row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "not found") {
		t.Errorf("wtHydrant row = %q", lines[2])
	}

	// the package serves suggestions too
	out, err = run(t, "--config", cfgPath, "suggest", "PIPE-2")
	if err != nil {
		t.Fatalf("suggest from package: %v", err)
	}
	if !strings.Contains(out, "PIPE-2000") {
		t.Errorf("suggest output = %q", out)
	}
}

func TestSeed_RequiresDatabase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", configYAML(""))
	dataPath := writeFile(t, dir, "data.json", dataset)

	_, err := run(t, "--config", cfgPath, "seed", dataPath)
	if err == nil || !strings.Contains(err.Error(), "database.addrs") {
		t.Errorf("err = %v, want database.addrs error", err)
	}
}

func TestPrintSuggestions(t *testing.T) {
	var buf bytes.Buffer
	if err := printSuggestions(&buf, nil, false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "no suggestions\n" {
		t.Errorf("empty = %q", buf.String())
	}

	buf.Reset()
	if err := printSuggestions(&buf, nil, true); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty json = %q", buf.String())
	}

	buf.Reset()
	sugs := []geosuggest.Suggestion{{Formatted: "A • B • C"}, {Formatted: "123 Main St"}}
	if err := printSuggestions(&buf, sugs, false); err != nil {
		t.Fatal(err)
	}
	if buf.String() != " 1. A • B • C\n 2. 123 Main St\n" {
		t.Errorf("list = %q", buf.String())
	}
}

func TestPrintSelection_Location(t *testing.T) {
	var buf bytes.Buffer
	sel := geosuggest.Selection{
		Mode:        geosuggest.ModeLocation,
		DisplayText: "100 Main St",
		Geometry:    &geo.Geometry{Kind: geo.KindPoint, Points: []geo.Point{{Lon: -79.5, Lat: 40.5}}},
		Source:      "geocoder",
	}
	if err := printSelection(&buf, sel, false); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "100 Main St\n") || !strings.Contains(buf.String(), "source: geocoder") {
		t.Errorf("output = %q", buf.String())
	}
}
