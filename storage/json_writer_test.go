package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJSONWriter_WritesPrettyJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "listings.json")
	w := NewJSONWriter(path)

	doc := map[string][]map[string]any{
		"soldHouses": {{"ID": 1, "Status": "Sold"}},
	}
	data, err := w.Write(doc)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(onDisk) != string(data) {
		t.Fatal("returned bytes differ from file contents")
	}
	if !strings.Contains(string(onDisk), "\n  \"soldHouses\": [\n    {") {
		t.Fatalf("expected two-space indentation, got:\n%s", onDisk)
	}

	var decoded map[string][]map[string]any
	if err := json.Unmarshal(onDisk, &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if len(decoded["soldHouses"]) != 1 {
		t.Fatalf("unexpected decoded output %v", decoded)
	}
}

func TestJSONWriter_OverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listings.json")
	w := NewJSONWriter(path)

	if _, err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(map[string]int{"b": 2}); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), `"a"`) {
		t.Fatalf("expected file to be replaced, got %s", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the output file, found %d entries", len(entries))
	}
}

func TestAppendTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetchTimestamps.log")
	ts := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	if err := AppendTimestamp(path, ts); err != nil {
		t.Fatal(err)
	}
	if err := AppendTimestamp(path, ts.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	want := "2026-10-18T09:30:00.000Z\n2026-10-18T10:30:00.000Z\n"
	if string(data) != want {
		t.Fatalf("unexpected log contents %q", data)
	}
}
