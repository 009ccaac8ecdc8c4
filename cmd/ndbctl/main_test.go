package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanTablesFromHeapSegments(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1_1_id_000.data", "1_1_id_001.data"} {
		if err := os.WriteFile(filepath.Join(dir, "data.heap_"+name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	tables, err := scanTables(dir)
	if err != nil {
		t.Fatalf("scanTables: %v", err)
	}
	tbl, ok := tables["1_1_id"]
	if !ok {
		t.Fatalf("expected table 1_1_id reconstructed from heap segment names, got %v", tables)
	}
	if tbl.heapSegments != 2 {
		t.Fatalf("heapSegments = %d, want 2", tbl.heapSegments)
	}
}

func TestScanTablesFromCheckpoints(t *testing.T) {
	dir := t.TempDir()
	ckptDir := filepath.Join(dir, "checkpoints")
	if err := os.Mkdir(ckptDir, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	files := []string{"checkpoint_1_1_id_10.chk", "checkpoint_1_1_id_25.chk"}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(ckptDir, f), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	tables, err := scanTables(dir)
	if err != nil {
		t.Fatalf("scanTables: %v", err)
	}
	tbl, ok := tables["1_1_id"]
	if !ok {
		t.Fatalf("expected table 1_1_id reconstructed from checkpoint names, got %v", tables)
	}
	if !tbl.hasCheckpoint || tbl.checkpointLSN != 25 {
		t.Fatalf("expected the highest LSN (25) retained, got %+v", tbl)
	}
}

func TestScanTablesNoCheckpointDirectory(t *testing.T) {
	dir := t.TempDir()
	tables, err := scanTables(dir)
	if err != nil {
		t.Fatalf("scanTables on a directory with no checkpoints/ subdir should not error: %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("expected no tables, got %v", tables)
	}
}

func TestHeapSegmentRegexRejectsUnrelatedFiles(t *testing.T) {
	if heapSegmentRE.MatchString("meta.json") {
		t.Fatalf("meta.json should not match the heap segment pattern")
	}
	if !heapSegmentRE.MatchString("data.heap_1_1_id_000.data") {
		t.Fatalf("expected data.heap_1_1_id_000.data to match the heap segment pattern")
	}
}
