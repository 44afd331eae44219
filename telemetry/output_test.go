package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	if err := om.WritePerf(PerfRecord{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteBookmarks([]Bookmark{{Type: BookmarkFPSCrash}}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := om.WritePerf(PerfRecord{Frame: int64(i), FPS: 60, Quality: "HIGH"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteBookmarks([]Bookmark{{Type: BookmarkFPSCrash, Frame: 2, Description: "drop"}}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "perf.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("perf.csv has %d lines, want header + 3 rows:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "frame,fps,") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if strings.Count(string(data), "frame,fps") != 1 {
		t.Error("header written more than once")
	}

	data, err = os.ReadFile(filepath.Join(dir, "bookmarks.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "fps_crash,2,drop") {
		t.Errorf("bookmarks.csv = %q", data)
	}
}
